package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/storage/postgres"
)

type fakeMigrator struct {
	calls     []string
	steps     int
	state     postgres.MigrationState
	failOn    string
	statusErr error
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.calls = append(f.calls, "up")
	f.steps = steps
	if f.failOn == "up" {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.calls = append(f.calls, "down")
	f.steps = steps
	if f.failOn == "down" {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	f.calls = append(f.calls, "status")
	return f.state, f.statusErr
}

func TestRun_Directions(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		steps     int
		wantCalls []string
		wantSteps int
		wantOut   string
	}{
		{name: "up all", direction: "up", steps: 0, wantCalls: []string{"up", "status"}, wantSteps: 0, wantOut: "migrate up ok: version=2 applied=2 pending=0"},
		{name: "down defaults to one step", direction: " DOWN ", steps: 0, wantCalls: []string{"down", "status"}, wantSteps: 1, wantOut: "migrate down ok"},
		{name: "status", direction: "status", wantCalls: []string{"status"}, wantOut: "migration status: version=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMigrator{state: postgres.MigrationState{Version: 2, Applied: 2}}
			var out bytes.Buffer

			if err := run(context.Background(), m, tt.direction, tt.steps, &out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(m.calls, ",") != strings.Join(tt.wantCalls, ",") {
				t.Fatalf("expected calls %v, got %v", tt.wantCalls, m.calls)
			}
			if m.steps != tt.wantSteps {
				t.Fatalf("expected steps %d, got %d", tt.wantSteps, m.steps)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Fatalf("expected output to contain %q, got %q", tt.wantOut, out.String())
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer

	err := run(context.Background(), &fakeMigrator{}, "sideways", 0, &out)
	if err == nil || !strings.Contains(err.Error(), "unsupported direction") {
		t.Fatalf("expected unsupported direction error, got %v", err)
	}

	err = run(context.Background(), &fakeMigrator{failOn: "up"}, "up", 0, &out)
	if err == nil || !strings.Contains(err.Error(), "migrate up failed") {
		t.Fatalf("expected migrate up error, got %v", err)
	}

	err = run(context.Background(), &fakeMigrator{statusErr: errors.New("no table")}, "status", 0, &out)
	if err == nil || !strings.Contains(err.Error(), "migration status failed") {
		t.Fatalf("expected status error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output on failure, got %q", out.String())
	}
}

func withMigrateCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"migrate"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func testPostgresDSN(t *testing.T) string {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("SALES_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	_ = store.Close()
	return dsn
}

func TestMainStatusAndMigratePaths(t *testing.T) {
	dsn := testPostgresDSN(t)

	withMigrateCLIArgs(t, []string{"-direction=status", "-dsn=" + dsn}, func() {
		main()
	})
	withMigrateCLIArgs(t, []string{"-direction=up", "-dsn=" + dsn}, func() {
		main()
	})
	withMigrateCLIArgs(t, []string{"-direction=down", "-steps=1", "-dsn=" + dsn}, func() {
		main()
	})
	withMigrateCLIArgs(t, []string{"-direction=up", "-dsn=" + dsn}, func() {
		main()
	})
}

func TestMainMissingDSNExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_EXIT") == "1" {
		withMigrateCLIArgs(t, []string{"-direction=status", "-dsn="}, func() {
			_ = os.Unsetenv(envPostgresDSN)
			main()
		})
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainMissingDSNExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
