package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/erpc/tck/test"
	"github.com/rs/zerolog/log"
)

// Serves a fake ledger for running the harness locally:
//
//	go run ./test/cmd
//
// then point JSON_RPC_SERVER_URL, GROUND_TRUTH_URL and MIRROR_NODE_REST_URL at it.
func main() {
	addr := os.Getenv("FAKE_LEDGER_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8544"
	}

	ledger, err := test.NewFakeLedger()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create fake ledger")
	}
	if lag := os.Getenv("FAKE_LEDGER_REPLICA_LAG"); lag != "" {
		n, err := strconv.Atoi(lag)
		if err != nil {
			log.Fatal().Err(err).Str("value", lag).Msg("invalid FAKE_LEDGER_REPLICA_LAG")
		}
		ledger.ReplicaLag = n
	}

	op := ledger.Operator()
	fmt.Printf("OPERATOR_ACCOUNT_ID=%s\nOPERATOR_ACCOUNT_PRIVATE_KEY=%s\nJSON_RPC_SERVER_URL=http://%s\nGROUND_TRUTH_URL=http://%s/gt\nMIRROR_NODE_REST_URL=http://%s\n",
		op.AccountId, op.PrivateKey.StringDer(), addr, addr, addr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", addr).Int("replicaLag", ledger.ReplicaLag).Msg("starting fake ledger")
		if err := ledger.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("fake ledger stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nReceived interrupt signal. Shutting down...")

	if err := ledger.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping fake ledger")
	}
	wg.Wait()
}
