package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/erpc/tck/common"
	"github.com/erpc/tck/harness"
	"github.com/erpc/tck/keys"
	"github.com/erpc/tck/session"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type checkStep struct {
	name string
	run  func(ctx context.Context) error
}

// runCheck opens a session with the configured operator and drives the smoke scenarios.
// Every step runs even if an earlier one failed, as long as its inputs exist.
func (a *app) runCheck(ctx context.Context, _ *cli.Command, h *harness.Harness) error {
	sess, err := h.Open(ctx)
	if err != nil {
		return fmt.Errorf("cannot open session: %w", err)
	}

	var (
		publicKey string
		created   common.EntityId
	)
	steps := []checkStep{
		{"operator is funded", func(ctx context.Context) error {
			bal, err := h.GroundTruth.AccountBalance(ctx, sess.Operator().AccountId)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "  operator %s holds %s tinybars\n", sess.Operator().AccountId, humanize.Comma(bal))
			if bal <= 0 {
				return fmt.Errorf("operator %s has no balance", sess.Operator().AccountId)
			}
			return nil
		}},
		{"generateKey returns a public key", func(ctx context.Context) error {
			res, err := h.Send(ctx, sess, "generateKey", map[string]interface{}{"type": "ed25519PublicKey"})
			if err != nil {
				return err
			}
			publicKey = res.String("key")
			if _, err := keys.ParsePublicKey(publicKey); err != nil {
				return fmt.Errorf("SUT returned an unusable key %q: %w", publicKey, err)
			}
			return nil
		}},
		{"createAccount succeeds with a fresh key", func(ctx context.Context) error {
			if publicKey == "" {
				return fmt.Errorf("no key from the previous step")
			}
			res, err := h.Send(ctx, sess, "createAccount", map[string]interface{}{"key": publicKey})
			if err != nil {
				return err
			}
			id, ok := res.CreatedEntityId()
			if !ok {
				return fmt.Errorf("createAccount returned no account id")
			}
			created = id
			fmt.Fprintf(a.out, "  created account %s\n", created)
			return nil
		}},
		{"ground truth reports the new account with zero balance", func(ctx context.Context) error {
			if created.IsZero() {
				return fmt.Errorf("no account from the previous step")
			}
			acc, err := h.GroundTruth.Account(ctx, created)
			if err != nil {
				return err
			}
			if acc.Balance != 0 {
				return fmt.Errorf("expected balance 0, got %s", humanize.Comma(acc.Balance))
			}
			return nil
		}},
		{"read replica converges on the new account", func(ctx context.Context) error {
			if created.IsZero() {
				return fmt.Errorf("no account from the previous step")
			}
			_, err := h.Verifier.Reconcile(ctx, common.AccountRef(created))
			return err
		}},
		{"an invalid key is rejected on the transport channel", func(ctx context.Context) error {
			_, err := h.Send(ctx, sess, "createAccount", map[string]interface{}{"key": "not-a-valid-key"})
			return expectTransportError(err)
		}},
	}

	failed := runSteps(ctx, a, steps)
	h.Sessions.Close(ctx, sess)

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(steps))
	}
	fmt.Fprintf(a.out, "all %d checks passed\n", len(steps))
	return nil
}

func runSteps(ctx context.Context, a *app, steps []checkStep) int {
	failed := 0
	for _, s := range steps {
		start := time.Now()
		err := s.run(ctx)
		took := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failed++
			fmt.Fprintf(a.out, "FAIL %s (%s): %s\n", s.name, took, common.ErrorSummary(err))
			log.Debug().Err(err).Str("step", s.name).Msg("check failed")
			continue
		}
		fmt.Fprintf(a.out, "ok   %s (%s)\n", s.name, took)
	}
	return failed
}

func expectTransportError(err error) error {
	if err == nil {
		return fmt.Errorf("expected an error, got success")
	}
	ce, ok := common.ClassifyError(err)
	if !ok {
		return fmt.Errorf("unclassified error: %w", err)
	}
	if ce.Channel() != common.ErrorChannelTransport {
		return fmt.Errorf("expected a transport error, got %s", common.ErrorSummary(err))
	}
	return nil
}

func (a *app) runVerify(ctx context.Context, cmd *cli.Command, h *harness.Harness) error {
	ref, err := common.ParseEntityRef(cmd.String("kind"), cmd.String("id"))
	if err != nil {
		return err
	}
	snap, err := h.Verifier.Reconcile(ctx, ref)
	if err != nil {
		return err
	}

	fields := snap.Fields()
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	fmt.Fprintf(a.out, "%s agrees across oracles\n", ref)
	for _, k := range names {
		v := fields[k]
		if n, ok := v.(int64); ok && k == common.FieldBalance {
			v = humanize.Comma(n)
		}
		fmt.Fprintf(a.out, "  %s: %v\n", k, v)
	}
	return nil
}

func (a *app) runKeygen(_ context.Context, cmd *cli.Command) error {
	kt, err := keys.ParseKeyType(cmd.String("type"))
	if err != nil {
		return err
	}
	pk, err := keys.GeneratePrivateKey(kt)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "type: %s\nprivateKey: %s\npublicKey: %s\n", kt, pk.StringDer(), pk.PublicKey().StringDer())
	return nil
}

func (a *app) runReset(ctx context.Context, cmd *cli.Command, h *harness.Harness) error {
	id := cmd.String("session")
	if _, err := h.Control.Call(ctx, session.MethodReset, map[string]interface{}{"sessionId": id}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "session %s reset\n", id)
	return nil
}
