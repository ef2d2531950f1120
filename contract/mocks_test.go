package contract

import (
	"crypto/x509"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/hyperledger/fabric-protos-go/peer"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// mockStub is an in-memory world state implementing the subset of the stub
// the registry touches. Query/private-data methods the registry never calls
// panic so an accidental use fails loudly.
type mockStub struct {
	state map[string][]byte
	ts    time.Time
	txID  string

	events []mockEvent
}

type mockEvent struct {
	name    string
	payload []byte
}

func newMockStub() *mockStub {
	return &mockStub{
		state: map[string][]byte{},
		ts:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		txID:  "tx-0001",
	}
}

// advanceClock moves the transaction timestamp forward, simulating a later
// slot in the global order.
func (ms *mockStub) advanceClock(d time.Duration) {
	ms.ts = ms.ts.Add(d)
}

func (ms *mockStub) eventNames() []string {
	names := make([]string, 0, len(ms.events))
	for _, ev := range ms.events {
		names = append(names, ev.name)
	}
	return names
}

func (ms *mockStub) clearEvents() {
	ms.events = nil
}

const compositeKeyNamespace = "\x00"

func (ms *mockStub) GetState(key string) ([]byte, error) {
	value, ok := ms.state[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (ms *mockStub) PutState(key string, value []byte) error {
	ms.state[key] = value
	return nil
}

func (ms *mockStub) DelState(key string) error {
	delete(ms.state, key)
	return nil
}

func (ms *mockStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	key := compositeKeyNamespace + objectType + string(rune(0))
	for _, attr := range attributes {
		key += attr + string(rune(0))
	}
	return key, nil
}

func (ms *mockStub) SplitCompositeKey(compositeKey string) (string, []string, error) {
	parts := strings.Split(strings.TrimPrefix(compositeKey, compositeKeyNamespace), string(rune(0)))
	if len(parts) < 2 {
		return "", nil, errors.New("invalid composite key")
	}
	return parts[0], parts[1 : len(parts)-1], nil
}

func (ms *mockStub) GetStateByPartialCompositeKey(objectType string, keys []string) (shim.StateQueryIteratorInterface, error) {
	prefix, err := ms.CreateCompositeKey(objectType, keys)
	if err != nil {
		return nil, err
	}
	matched := []string{}
	for key := range ms.state {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)
	kvs := make([]*queryresult.KV, 0, len(matched))
	for _, key := range matched {
		kvs = append(kvs, &queryresult.KV{Key: key, Value: ms.state[key]})
	}
	return &mockStateIterator{kvs: kvs}, nil
}

func (ms *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(ms.ts), nil
}

func (ms *mockStub) SetEvent(name string, payload []byte) error {
	ms.events = append(ms.events, mockEvent{name: name, payload: payload})
	return nil
}

func (ms *mockStub) GetTxID() string      { return ms.txID }
func (ms *mockStub) GetChannelID() string { return "testchannel" }

// Methods below are not exercised by the registry.

func (ms *mockStub) GetArgs() [][]byte       { panic("not implemented in mock") }
func (ms *mockStub) GetStringArgs() []string { panic("not implemented in mock") }
func (ms *mockStub) GetFunctionAndParameters() (string, []string) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetArgsSlice() ([]byte, error) { panic("not implemented in mock") }
func (ms *mockStub) InvokeChaincode(string, [][]byte, string) peer.Response {
	panic("not implemented in mock")
}
func (ms *mockStub) SetStateValidationParameter(string, []byte) error {
	panic("not implemented in mock")
}
func (ms *mockStub) GetStateValidationParameter(string) ([]byte, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetStateByRange(string, string) (shim.StateQueryIteratorInterface, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetStateByRangeWithPagination(string, string, int32, string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetStateByPartialCompositeKeyWithPagination(string, []string, int32, string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetQueryResult(string) (shim.StateQueryIteratorInterface, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetQueryResultWithPagination(string, int32, string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetHistoryForKey(string) (shim.HistoryQueryIteratorInterface, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetPrivateData(string, string) ([]byte, error) { panic("not implemented in mock") }
func (ms *mockStub) GetPrivateDataHash(string, string) ([]byte, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) PutPrivateData(string, string, []byte) error { panic("not implemented in mock") }
func (ms *mockStub) DelPrivateData(string, string) error         { panic("not implemented in mock") }
func (ms *mockStub) PurgePrivateData(string, string) error       { panic("not implemented in mock") }
func (ms *mockStub) SetPrivateDataValidationParameter(string, string, []byte) error {
	panic("not implemented in mock")
}
func (ms *mockStub) GetPrivateDataValidationParameter(string, string) ([]byte, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetPrivateDataByRange(string, string, string) (shim.StateQueryIteratorInterface, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetPrivateDataByPartialCompositeKey(string, string, []string) (shim.StateQueryIteratorInterface, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetPrivateDataQueryResult(string, string) (shim.StateQueryIteratorInterface, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetCreator() ([]byte, error) { panic("not implemented in mock") }
func (ms *mockStub) GetTransient() (map[string][]byte, error) {
	panic("not implemented in mock")
}
func (ms *mockStub) GetBinding() ([]byte, error)       { panic("not implemented in mock") }
func (ms *mockStub) GetDecorations() map[string][]byte { panic("not implemented in mock") }
func (ms *mockStub) GetSignedProposal() (*peer.SignedProposal, error) {
	panic("not implemented in mock")
}

type mockStateIterator struct {
	kvs []*queryresult.KV
	idx int
}

func (it *mockStateIterator) HasNext() bool { return it.idx < len(it.kvs) }

func (it *mockStateIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, errors.New("no more items")
	}
	kv := it.kvs[it.idx]
	it.idx++
	return kv, nil
}

func (it *mockStateIterator) Close() error { return nil }

// mockClientIdentity reports a fixed principal as the transaction submitter.
type mockClientIdentity struct {
	id    string
	mspID string
}

func (mc *mockClientIdentity) GetID() (string, error)    { return mc.id, nil }
func (mc *mockClientIdentity) GetMSPID() (string, error) { return mc.mspID, nil }
func (mc *mockClientIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (mc *mockClientIdentity) AssertAttributeValue(string, string) error { return nil }
func (mc *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, nil
}

// contextFor builds a transaction context where the given principal is the
// direct submitter against the shared world state.
func contextFor(stub *mockStub, principal string) *contractapi.TransactionContext {
	ctx := &contractapi.TransactionContext{}
	ctx.SetStub(stub)
	ctx.SetClientIdentity(&mockClientIdentity{id: principal, mspID: "TestMSP"})
	return ctx
}
