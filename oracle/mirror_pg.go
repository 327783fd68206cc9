package oracle

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erpc/tck/common"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

const PostgresReadReplicaName = "read-replica-db"

// Encoded entity ids pack shard, realm and num into one bigint (10, 16 and 38 bits).
const (
	entityNumBits   = 38
	entityRealmBits = 16
	entityShardBits = 10

	entityNumMask   = int64(1)<<entityNumBits - 1
	entityRealmMask = int64(1)<<entityRealmBits - 1
	entityShardMask = int64(1)<<entityShardBits - 1
)

// EncodeEntityId packs id the way the indexer database stores it.
func EncodeEntityId(id common.EntityId) (int64, error) {
	if id.Shard < 0 || id.Shard > entityShardMask ||
		id.Realm < 0 || id.Realm > entityRealmMask ||
		id.Num < 0 || id.Num > entityNumMask {
		return 0, fmt.Errorf("entity id %s does not fit the encoded form", id)
	}
	return id.Shard<<(entityRealmBits+entityNumBits) | id.Realm<<entityNumBits | id.Num, nil
}

func DecodeEntityId(encoded int64) common.EntityId {
	return common.EntityId{
		Shard: encoded >> (entityRealmBits + entityNumBits) & entityShardMask,
		Realm: encoded >> entityNumBits & entityRealmMask,
		Num:   encoded & entityNumMask,
	}
}

// PostgresReadReplica reads the indexer database behind the read replica directly. Key
// material is stored in protobuf form there, so keys are not exposed.
type PostgresReadReplica struct {
	logger       *zerolog.Logger
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	closeOnce    sync.Once
}

var _ Oracle = (*PostgresReadReplica)(nil)

var postgresFields = map[common.EntityKind][]string{
	common.EntityKindAccount: {
		common.FieldAccountId, common.FieldBalance, common.FieldMemo, common.FieldDeleted,
		common.FieldReceiverSignatureRequired, common.FieldMaxAutomaticTokenAssociations,
		common.FieldAutoRenewPeriod, common.FieldStakedAccountId, common.FieldStakedNodeId,
		common.FieldDeclineStakingReward, common.FieldEvmAddress,
	},
	common.EntityKindContract: {
		common.FieldContractId, common.FieldMemo, common.FieldAutoRenewAccountId, common.FieldAutoRenewPeriod,
		common.FieldMaxAutomaticTokenAssociations, common.FieldEvmAddress, common.FieldDeleted,
	},
	common.EntityKindToken: {
		common.FieldTokenId, common.FieldName, common.FieldSymbol, common.FieldDecimals, common.FieldTotalSupply,
		common.FieldTreasuryAccountId, common.FieldTokenType, common.FieldSupplyType, common.FieldMaxSupply,
		common.FieldFreezeDefault, common.FieldMemo, common.FieldDeleted,
	},
	common.EntityKindTopic: {
		common.FieldTopicId, common.FieldMemo, common.FieldAutoRenewAccountId, common.FieldAutoRenewPeriod,
		common.FieldDeleted,
	},
	common.EntityKindSchedule: {
		common.FieldScheduleId, common.FieldCreatorAccountId, common.FieldPayerAccountId, common.FieldMemo,
		common.FieldExecuted, common.FieldDeleted, common.FieldWaitForExpiry,
	},
	common.EntityKindNode: {
		common.FieldNodeId, common.FieldNodeAccountId, common.FieldDescription, common.FieldServiceEndpoints,
	},
}

func NewPostgresReadReplica(
	ctx context.Context,
	logger *zerolog.Logger,
	cfg *common.PostgreSQLReadReplicaConfig,
) (*PostgresReadReplica, error) {
	lg := logger.With().Str("component", "oracle").Str("oracle", PostgresReadReplicaName).Logger()

	config, err := pgxpool.ParseConfig(cfg.ConnectionUri)
	if err != nil {
		return nil, common.NewErrInvalidConfig("readReplica.postgresql.connectionUri", err)
	}
	config.MinConns = cfg.MinConns
	config.MaxConns = cfg.MaxConns
	config.MaxConnIdleTime = 5 * time.Minute

	initCtx, cancel := context.WithTimeout(ctx, cfg.InitTimeout.Duration())
	defer cancel()

	pool, err := pgxpool.ConnectConfig(initCtx, config)
	if err != nil {
		return nil, common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "failed to connect to read replica database", err, nil)
	}
	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "read replica database did not answer ping", err, nil)
	}

	lg.Info().Int32("minConns", cfg.MinConns).Int32("maxConns", cfg.MaxConns).Msg("connected to read replica database")
	return &PostgresReadReplica{
		logger:       &lg,
		pool:         pool,
		queryTimeout: cfg.QueryTimeout.Duration(),
	}, nil
}

func (p *PostgresReadReplica) Name() string { return PostgresReadReplicaName }

func (p *PostgresReadReplica) Consistency() Consistency { return ConsistencyEventual }

func (p *PostgresReadReplica) Exposes(kind common.EntityKind) []string {
	return copyFields(kind, postgresFields)
}

func (p *PostgresReadReplica) Query(ctx context.Context, ref common.EntityRef) (common.Snapshot, error) {
	return dispatch(ctx, p, ref)
}

func (p *PostgresReadReplica) Close() {
	p.closeOnce.Do(func() {
		p.pool.Close()
	})
}

func (p *PostgresReadReplica) queryRow(ctx context.Context, ref common.EntityRef, sql string, args []interface{}, dest ...interface{}) error {
	if p.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
		defer cancel()
	}
	err := p.pool.QueryRow(ctx, sql, args...).Scan(dest...)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewErrEntityNotFound(PostgresReadReplicaName, ref, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewErrTransportFailure(common.JsonRpcErrorRequestTimeout, "read replica query timed out", err, nil)
	}
	return common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "read replica query failed", err, nil)
}

func (p *PostgresReadReplica) encode(ref common.EntityRef) (int64, error) {
	enc, err := EncodeEntityId(ref.Id)
	if err != nil {
		return 0, common.NewErrTransportFailure(common.JsonRpcErrorLocalValidation, err.Error(), err, nil)
	}
	return enc, nil
}

func optionalEntity(v *int64) string {
	if v == nil || *v <= 0 {
		return ""
	}
	return DecodeEntityId(*v).String()
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

const selectAccount = `
SELECT coalesce(e.balance, 0), coalesce(e.memo, ''), coalesce(e.deleted, false),
       coalesce(e.receiver_sig_required, false), coalesce(e.max_automatic_token_associations, 0),
       coalesce(e.auto_renew_period, 0), e.staked_account_id, e.staked_node_id,
       coalesce(e.decline_reward, false), e.evm_address
FROM entity e
WHERE e.id = $1 AND e.type = 'ACCOUNT'`

func (p *PostgresReadReplica) Account(ctx context.Context, id common.EntityId) (*common.AccountState, error) {
	ref := common.AccountRef(id)
	return observe(ctx, PostgresReadReplicaName, ref, func(ctx context.Context) (*common.AccountState, error) {
		enc, err := p.encode(ref)
		if err != nil {
			return nil, err
		}
		var (
			s             = &common.AccountState{AccountId: id}
			stakedAccount *int64
			stakedNode    *int64
			evm           []byte
		)
		err = p.queryRow(ctx, ref, selectAccount, []interface{}{enc},
			&s.Balance, &s.Memo, &s.Deleted, &s.ReceiverSignatureRequired, &s.MaxAutomaticTokenAssociations,
			&s.AutoRenewPeriod, &stakedAccount, &stakedNode, &s.DeclineStakingReward, &evm,
		)
		if err != nil {
			return nil, err
		}
		s.StakedAccountId = optionalEntity(stakedAccount)
		s.StakedNodeId = normalizeStakedNode(stakedNode)
		s.EvmAddress = hexOrEmpty(evm)
		return s, nil
	})
}

const selectContract = `
SELECT coalesce(e.memo, ''), e.auto_renew_account_id, coalesce(e.auto_renew_period, 0),
       coalesce(e.max_automatic_token_associations, 0), e.evm_address, coalesce(e.deleted, false)
FROM entity e
WHERE e.id = $1 AND e.type = 'CONTRACT'`

func (p *PostgresReadReplica) Contract(ctx context.Context, id common.EntityId) (*common.ContractState, error) {
	ref := common.ContractRef(id)
	return observe(ctx, PostgresReadReplicaName, ref, func(ctx context.Context) (*common.ContractState, error) {
		enc, err := p.encode(ref)
		if err != nil {
			return nil, err
		}
		var (
			s         = &common.ContractState{ContractId: id}
			autoRenew *int64
			evm       []byte
		)
		err = p.queryRow(ctx, ref, selectContract, []interface{}{enc},
			&s.Memo, &autoRenew, &s.AutoRenewPeriod, &s.MaxAutomaticTokenAssociations, &evm, &s.Deleted,
		)
		if err != nil {
			return nil, err
		}
		s.AutoRenewAccountId = optionalEntity(autoRenew)
		s.EvmAddress = hexOrEmpty(evm)
		return s, nil
	})
}

const selectToken = `
SELECT t.name, t.symbol, t.decimals, t.total_supply, t.treasury_account_id, t.type::text, t.supply_type::text,
       coalesce(t.max_supply, 0), coalesce(t.freeze_default, false),
       coalesce(e.memo, ''), coalesce(e.deleted, false)
FROM token t
JOIN entity e ON e.id = t.token_id
WHERE t.token_id = $1`

func (p *PostgresReadReplica) Token(ctx context.Context, id common.EntityId) (*common.TokenState, error) {
	ref := common.TokenRef(id)
	return observe(ctx, PostgresReadReplicaName, ref, func(ctx context.Context) (*common.TokenState, error) {
		enc, err := p.encode(ref)
		if err != nil {
			return nil, err
		}
		var (
			s        = &common.TokenState{TokenId: id}
			treasury *int64
		)
		err = p.queryRow(ctx, ref, selectToken, []interface{}{enc},
			&s.Name, &s.Symbol, &s.Decimals, &s.TotalSupply, &treasury, &s.TokenType, &s.SupplyType,
			&s.MaxSupply, &s.FreezeDefault, &s.Memo, &s.Deleted,
		)
		if err != nil {
			return nil, err
		}
		s.TreasuryAccountId = optionalEntity(treasury)
		return s, nil
	})
}

const selectTopic = `
SELECT coalesce(e.memo, ''), e.auto_renew_account_id, coalesce(e.auto_renew_period, 0), coalesce(e.deleted, false)
FROM entity e
WHERE e.id = $1 AND e.type = 'TOPIC'`

func (p *PostgresReadReplica) Topic(ctx context.Context, id common.EntityId) (*common.TopicState, error) {
	ref := common.TopicRef(id)
	return observe(ctx, PostgresReadReplicaName, ref, func(ctx context.Context) (*common.TopicState, error) {
		enc, err := p.encode(ref)
		if err != nil {
			return nil, err
		}
		var (
			s         = &common.TopicState{TopicId: id}
			autoRenew *int64
		)
		err = p.queryRow(ctx, ref, selectTopic, []interface{}{enc}, &s.Memo, &autoRenew, &s.AutoRenewPeriod, &s.Deleted)
		if err != nil {
			return nil, err
		}
		s.AutoRenewAccountId = optionalEntity(autoRenew)
		return s, nil
	})
}

const selectSchedule = `
SELECT s.creator_account_id, s.payer_account_id, s.executed_timestamp, coalesce(s.wait_for_expiry, false),
       coalesce(e.memo, ''), coalesce(e.deleted, false)
FROM schedule s
JOIN entity e ON e.id = s.schedule_id
WHERE s.schedule_id = $1`

func (p *PostgresReadReplica) Schedule(ctx context.Context, id common.EntityId) (*common.ScheduleState, error) {
	ref := common.ScheduleRef(id)
	return observe(ctx, PostgresReadReplicaName, ref, func(ctx context.Context) (*common.ScheduleState, error) {
		enc, err := p.encode(ref)
		if err != nil {
			return nil, err
		}
		var (
			s          = &common.ScheduleState{ScheduleId: id}
			creator    *int64
			payer      *int64
			executedAt *int64
		)
		err = p.queryRow(ctx, ref, selectSchedule, []interface{}{enc},
			&creator, &payer, &executedAt, &s.WaitForExpiry, &s.Memo, &s.Deleted,
		)
		if err != nil {
			return nil, err
		}
		s.CreatorAccountId = optionalEntity(creator)
		s.PayerAccountId = optionalEntity(payer)
		s.Executed = executedAt != nil
		return s, nil
	})
}

const selectNode = `
SELECT abe.node_account_id, coalesce(abe.description, ''), abe.consensus_timestamp
FROM address_book_entry abe
WHERE abe.node_id = $1
ORDER BY abe.consensus_timestamp DESC
LIMIT 1`

const selectNodeEndpoints = `
SELECT coalesce(ip_address_v4, ''), coalesce(domain_name, ''), port
FROM address_book_service_endpoint
WHERE node_id = $1 AND consensus_timestamp = $2`

func (p *PostgresReadReplica) Node(ctx context.Context, nodeId int64) (*common.NodeState, error) {
	ref := common.NodeRef(nodeId)
	return observe(ctx, PostgresReadReplicaName, ref, func(ctx context.Context) (*common.NodeState, error) {
		var (
			s           = &common.NodeState{NodeId: nodeId}
			nodeAccount int64
			consensusTs int64
		)
		if err := p.queryRow(ctx, ref, selectNode, []interface{}{nodeId}, &nodeAccount, &s.Description, &consensusTs); err != nil {
			return nil, err
		}
		s.NodeAccountId = DecodeEntityId(nodeAccount).String()

		if p.queryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
			defer cancel()
		}
		rows, err := p.pool.Query(ctx, selectNodeEndpoints, nodeId, consensusTs)
		if err != nil {
			return nil, common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "read replica query failed", err, nil)
		}
		defer rows.Close()

		var eps []string
		for rows.Next() {
			var (
				ip, domain string
				port       int32
			)
			if err := rows.Scan(&ip, &domain, &port); err != nil {
				return nil, common.NewErrTransportFailure(common.JsonRpcErrorMalformedResponse, "could not scan service endpoint", err, nil)
			}
			eps = append(eps, formatEndpoint(ip, domain, int64(port)))
		}
		if err := rows.Err(); err != nil {
			return nil, common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "read replica query failed", err, nil)
		}
		s.ServiceEndpoints = sortedEndpoints(eps)
		return s, nil
	})
}
