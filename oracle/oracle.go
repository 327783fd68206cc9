package oracle

import (
	"context"
	"fmt"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Consistency says how soon an oracle reflects a finalized operation.
type Consistency string

const (
	// ConsistencyImmediate oracles reflect every finalized operation as soon as the SUT reports it.
	ConsistencyImmediate Consistency = "immediate"
	// ConsistencyEventual oracles catch up after a propagation delay and must be polled.
	ConsistencyEventual Consistency = "eventual"
)

// Oracle is a read-only view of ledger state.
type Oracle interface {
	Name() string
	Consistency() Consistency

	// Query returns the current snapshot of ref, or an error for which common.IsNotFound is true.
	Query(ctx context.Context, ref common.EntityRef) (common.Snapshot, error)

	// Exposes lists the snapshot fields of kind this oracle can report.
	Exposes(kind common.EntityKind) []string

	Account(ctx context.Context, id common.EntityId) (*common.AccountState, error)
	Contract(ctx context.Context, id common.EntityId) (*common.ContractState, error)
	Token(ctx context.Context, id common.EntityId) (*common.TokenState, error)
	Topic(ctx context.Context, id common.EntityId) (*common.TopicState, error)
	Schedule(ctx context.Context, id common.EntityId) (*common.ScheduleState, error)
	Node(ctx context.Context, nodeId int64) (*common.NodeState, error)
}

var allFields = map[common.EntityKind][]string{
	common.EntityKindAccount: {
		common.FieldAccountId, common.FieldBalance, common.FieldKey, common.FieldMemo, common.FieldDeleted,
		common.FieldReceiverSignatureRequired, common.FieldMaxAutomaticTokenAssociations,
		common.FieldAutoRenewPeriod, common.FieldStakedAccountId, common.FieldStakedNodeId,
		common.FieldDeclineStakingReward, common.FieldEvmAddress,
	},
	common.EntityKindContract: {
		common.FieldContractId, common.FieldAdminKey, common.FieldMemo, common.FieldAutoRenewAccountId,
		common.FieldAutoRenewPeriod, common.FieldMaxAutomaticTokenAssociations, common.FieldEvmAddress,
		common.FieldDeleted,
	},
	common.EntityKindToken: {
		common.FieldTokenId, common.FieldName, common.FieldSymbol, common.FieldDecimals, common.FieldTotalSupply,
		common.FieldTreasuryAccountId, common.FieldAdminKey, common.FieldTokenType, common.FieldSupplyType,
		common.FieldMaxSupply, common.FieldFreezeDefault, common.FieldMemo, common.FieldDeleted,
	},
	common.EntityKindTopic: {
		common.FieldTopicId, common.FieldMemo, common.FieldAdminKey, common.FieldSubmitKey,
		common.FieldAutoRenewAccountId, common.FieldAutoRenewPeriod, common.FieldDeleted,
	},
	common.EntityKindSchedule: {
		common.FieldScheduleId, common.FieldCreatorAccountId, common.FieldPayerAccountId, common.FieldAdminKey,
		common.FieldMemo, common.FieldExecuted, common.FieldDeleted, common.FieldWaitForExpiry,
	},
	common.EntityKindNode: {
		common.FieldNodeId, common.FieldNodeAccountId, common.FieldDescription, common.FieldServiceEndpoints,
	},
}

func copyFields(kind common.EntityKind, src map[common.EntityKind][]string) []string {
	f := src[kind]
	out := make([]string, len(f))
	copy(out, f)
	return out
}

// dispatch routes a generic query to the typed getter.
func dispatch(ctx context.Context, o Oracle, ref common.EntityRef) (common.Snapshot, error) {
	var (
		snap common.Snapshot
		err  error
	)
	switch ref.Kind {
	case common.EntityKindAccount:
		var s *common.AccountState
		if s, err = o.Account(ctx, ref.Id); err == nil {
			snap = s
		}
	case common.EntityKindContract:
		var s *common.ContractState
		if s, err = o.Contract(ctx, ref.Id); err == nil {
			snap = s
		}
	case common.EntityKindToken:
		var s *common.TokenState
		if s, err = o.Token(ctx, ref.Id); err == nil {
			snap = s
		}
	case common.EntityKindTopic:
		var s *common.TopicState
		if s, err = o.Topic(ctx, ref.Id); err == nil {
			snap = s
		}
	case common.EntityKindSchedule:
		var s *common.ScheduleState
		if s, err = o.Schedule(ctx, ref.Id); err == nil {
			snap = s
		}
	case common.EntityKindNode:
		var s *common.NodeState
		if s, err = o.Node(ctx, ref.Id.Num); err == nil {
			snap = s
		}
	default:
		err = common.NewErrTransportFailure(
			common.JsonRpcErrorLocalValidation,
			fmt.Sprintf("%s oracle cannot query entities of kind %q", o.Name(), ref.Kind),
			nil,
			map[string]interface{}{"kind": string(ref.Kind)},
		)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// transactionKind labels receipt and transaction lookups; it is not an entity kind and
// dispatch rejects it.
const transactionKind common.EntityKind = "transaction"

func transactionRef(txId common.TransactionId) common.EntityRef {
	return common.EntityRef{Kind: transactionKind, Id: txId.AccountId}
}

// observe wraps one oracle lookup with a span and query metrics.
func observe[T any](ctx context.Context, oracleName string, ref common.EntityRef, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := common.StartSpan(ctx, "Oracle.Query",
		trace.WithAttributes(
			attribute.String("oracle", oracleName),
			attribute.String("entity.kind", string(ref.Kind)),
			attribute.String("entity.id", ref.Id.String()),
		),
	)
	res, err := fn(ctx)
	common.EndSpan(span, err)

	outcome := telemetry.OutcomeSuccess
	switch {
	case err == nil:
	case common.IsNotFound(err):
		outcome = telemetry.OutcomeNotFound
	default:
		outcome = telemetry.OutcomeError
	}
	telemetry.CounterHandle(telemetry.MetricOracleQueryTotal, oracleName, string(ref.Kind), outcome).Inc()
	return res, err
}
