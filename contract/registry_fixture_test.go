package contract

import (
	"testing"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

const (
	trusteePrincipal = "principal-trustee-1"
	issuerPrincipal  = "principal-issuer-1"
	holderPrincipal  = "principal-holder-1"

	// CIDv0 of a well-known block, used as a content locator.
	testContentLocator = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
)

// digestOf builds a hex multihash over arbitrary content, the format the
// registry expects for document digests and credential ids.
func digestOf(t *testing.T, content string) string {
	t.Helper()
	sum, err := multihash.Sum([]byte(content), multihash.SHA2_256, -1)
	require.NoError(t, err)
	return sum.HexString()
}

// testEnv bundles a shared world state with the contract under test.
type testEnv struct {
	t        *testing.T
	stub     *mockStub
	contract *TrustRegistrySmartContract
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{t: t, stub: newMockStub(), contract: NewTrustRegistrySmartContract()}
}

func (e *testEnv) ctx(principal string) *contractapi.TransactionContext {
	return contextFor(e.stub, principal)
}

func (e *testEnv) bootstrap(principal string) {
	e.t.Helper()
	require.NoError(e.t, e.contract.BootstrapTrustee(e.ctx(principal)))
}

func (e *testEnv) assignRole(trustee, role, principal string) {
	e.t.Helper()
	require.NoError(e.t, e.contract.AssignRole(e.ctx(trustee), role, principal))
}

func (e *testEnv) createDid(principal, digest string) {
	e.t.Helper()
	require.NoError(e.t, e.contract.CreateDid(e.ctx(principal), principal, digest))
}

// trustTriangle bootstraps the standard fixture: one trustee, one issuer and
// one holder, the latter two with active DID records.
func (e *testEnv) trustTriangle() {
	e.t.Helper()
	e.bootstrap(trusteePrincipal)
	e.assignRole(trusteePrincipal, "ISSUER", issuerPrincipal)
	e.assignRole(trusteePrincipal, "HOLDER", holderPrincipal)
	e.createDid(issuerPrincipal, digestOf(e.t, "issuer-doc-v1"))
	e.createDid(holderPrincipal, digestOf(e.t, "holder-doc-v1"))
	e.stub.advanceClock(time.Minute)
	e.stub.clearEvents()
}

// issue creates a credential from issuer to holder with correctly derived
// DID hashes.
func (e *testEnv) issue(issuer, holder, credentialID string) error {
	e.t.Helper()
	return e.contract.IssueCredential(e.ctx(issuer), holder, credentialID,
		deriveDidHash(issuer), deriveDidHash(holder), testContentLocator)
}
