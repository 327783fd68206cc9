package oracle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erpc/tck/common"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestEntityIdEncoding(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, s := range []string{"0.0.0", "0.0.1001", "1.2.3", "1023.65535.274877906943"} {
			id := common.MustParseEntityId(s)
			enc, err := EncodeEntityId(id)
			require.NoError(t, err)
			assert.Equal(t, id, DecodeEntityId(enc), s)
		}
	})

	t.Run("KnownValue", func(t *testing.T) {
		enc, err := EncodeEntityId(common.NewEntityId(1, 2, 3))
		require.NoError(t, err)
		assert.Equal(t, int64(1)<<54|int64(2)<<38|3, enc)
	})

	t.Run("Overflow", func(t *testing.T) {
		_, err := EncodeEntityId(common.NewEntityId(1024, 0, 1))
		assert.Error(t, err)
		_, err = EncodeEntityId(common.NewEntityId(0, 65536, 1))
		assert.Error(t, err)
		_, err = EncodeEntityId(common.NewEntityId(0, 0, int64(1)<<38))
		assert.Error(t, err)
	})
}

const replicaSchema = `
CREATE TYPE entity_type AS ENUM ('ACCOUNT', 'CONTRACT', 'FILE', 'TOPIC', 'TOKEN', 'SCHEDULE');
CREATE TYPE token_type AS ENUM ('FUNGIBLE_COMMON', 'NON_FUNGIBLE_UNIQUE');
CREATE TYPE token_supply_type AS ENUM ('INFINITE', 'FINITE');
CREATE TABLE entity (
  id bigint PRIMARY KEY,
  type entity_type NOT NULL,
  balance bigint,
  memo text,
  deleted boolean,
  receiver_sig_required boolean,
  max_automatic_token_associations integer,
  auto_renew_period bigint,
  auto_renew_account_id bigint,
  staked_account_id bigint,
  staked_node_id bigint,
  decline_reward boolean,
  evm_address bytea
);
CREATE TABLE token (
  token_id bigint PRIMARY KEY,
  name text NOT NULL,
  symbol text NOT NULL,
  decimals bigint NOT NULL,
  total_supply bigint NOT NULL,
  treasury_account_id bigint,
  type token_type NOT NULL,
  supply_type token_supply_type NOT NULL,
  max_supply bigint,
  freeze_default boolean
);
CREATE TABLE schedule (
  schedule_id bigint PRIMARY KEY,
  creator_account_id bigint,
  payer_account_id bigint,
  executed_timestamp bigint,
  wait_for_expiry boolean
);
CREATE TABLE address_book_entry (
  consensus_timestamp bigint NOT NULL,
  node_id bigint NOT NULL,
  node_account_id bigint NOT NULL,
  description text
);
CREATE TABLE address_book_service_endpoint (
  consensus_timestamp bigint NOT NULL,
  node_id bigint NOT NULL,
  ip_address_v4 text,
  domain_name text,
  port integer
);
INSERT INTO entity (id, type, balance, memo, deleted, receiver_sig_required, max_automatic_token_associations,
  auto_renew_period, staked_account_id, staked_node_id, decline_reward, evm_address)
VALUES (1001, 'ACCOUNT', 500, 'acct', false, true, 10, 7776000, 0, -1, false, NULL);
INSERT INTO entity (id, type, memo, deleted) VALUES (2002, 'TOKEN', 'tok', false);
INSERT INTO token VALUES (2002, 'Test', 'TST', 2, 1000, 1001, 'FUNGIBLE_COMMON', 'INFINITE', 0, false);
INSERT INTO entity (id, type, memo, deleted) VALUES (3003, 'SCHEDULE', 'sched', false);
INSERT INTO schedule VALUES (3003, 1001, 1001, 1700000000000000001, false);
INSERT INTO address_book_entry VALUES (1, 0, 3, 'old'), (2, 0, 3, 'node0');
INSERT INTO address_book_service_endpoint VALUES
  (1, 0, '10.0.0.9', NULL, 50211),
  (2, 0, '10.0.0.2', NULL, 50211),
  (2, 0, NULL, 'node0.local', 50212);
`

func TestPostgresReadReplica(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "password"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
	}
	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	defer postgresC.Terminate(ctx)

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)
	connURI := fmt.Sprintf("postgres://postgres:password@%s:%s/postgres?sslmode=disable", host, port.Port())

	seed, err := pgxpool.Connect(ctx, connURI)
	require.NoError(t, err)
	_, err = seed.Exec(ctx, replicaSchema)
	require.NoError(t, err)
	seed.Close()

	replica, err := NewPostgresReadReplica(ctx, &log.Logger, &common.PostgreSQLReadReplicaConfig{
		ConnectionUri: connURI,
		MinConns:      1,
		MaxConns:      2,
		InitTimeout:   common.Duration(10 * time.Second),
		QueryTimeout:  common.Duration(5 * time.Second),
	})
	require.NoError(t, err)
	defer replica.Close()

	t.Run("Account", func(t *testing.T) {
		acc, err := replica.Account(ctx, common.MustParseEntityId("0.0.1001"))
		require.NoError(t, err)
		assert.Equal(t, int64(500), acc.Balance)
		assert.Equal(t, "acct", acc.Memo)
		assert.True(t, acc.ReceiverSignatureRequired)
		assert.Equal(t, "", acc.StakedAccountId)
		assert.Nil(t, acc.StakedNodeId)
	})

	t.Run("MissingAccount", func(t *testing.T) {
		_, err := replica.Account(ctx, common.MustParseEntityId("0.0.4242"))
		require.Error(t, err)
		assert.True(t, common.IsNotFound(err))
	})

	t.Run("Token", func(t *testing.T) {
		tok, err := replica.Token(ctx, common.MustParseEntityId("0.0.2002"))
		require.NoError(t, err)
		assert.Equal(t, "TST", tok.Symbol)
		assert.Equal(t, "0.0.1001", tok.TreasuryAccountId)
		assert.Equal(t, "FUNGIBLE_COMMON", tok.TokenType)
		assert.Equal(t, "tok", tok.Memo)
	})

	t.Run("Schedule", func(t *testing.T) {
		s, err := replica.Schedule(ctx, common.MustParseEntityId("0.0.3003"))
		require.NoError(t, err)
		assert.True(t, s.Executed)
		assert.Equal(t, "0.0.1001", s.PayerAccountId)
	})

	t.Run("NodeUsesLatestAddressBook", func(t *testing.T) {
		n, err := replica.Node(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, "0.0.3", n.NodeAccountId)
		assert.Equal(t, "node0", n.Description)
		assert.Equal(t, []string{"10.0.0.2:50211", "node0.local:50212"}, n.ServiceEndpoints)
	})
}
