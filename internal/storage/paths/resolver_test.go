package paths

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/market"
)

func TestResolveLayout(t *testing.T) {
	r := NewResolver("/data", "")
	key := market.MonthKey{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.January}

	local, remote, err := r.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	wantLocal := filepath.Join("/data", "BTCUSD", "tiingo", "2024", "01", "BTCUSD_tiingo_202401.parquet")
	if local != wantLocal {
		t.Errorf("local = %q, want %q", local, wantLocal)
	}

	wantRemote := "BTCUSD/tiingo/2024/01/BTCUSD_tiingo_202401.parquet"
	if remote != wantRemote {
		t.Errorf("remote = %q, want %q", remote, wantRemote)
	}
}

func TestResolvePrefix(t *testing.T) {
	r := NewResolver("/data", "archive/v2")
	key := market.MonthKey{Ticker: "ETHUSD", Exchange: "coinbase", Year: 2023, Month: time.December}

	remote, err := r.RemoteKey(key)
	if err != nil {
		t.Fatalf("RemoteKey: %v", err)
	}
	if want := "archive/v2/ETHUSD/coinbase/2023/12/ETHUSD_coinbase_202312.parquet"; remote != want {
		t.Errorf("remote = %q, want %q", remote, want)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := NewResolver("/data", "pre")
	key := market.MonthKey{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.March}

	l1, k1, err := r.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	l2, k2, err := r.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l1 != l2 || k1 != k2 {
		t.Errorf("resolution not stable: (%q,%q) vs (%q,%q)", l1, k1, l2, k2)
	}
}

func TestResolveInjective(t *testing.T) {
	r := NewResolver("/data", "")

	keys := []market.MonthKey{
		{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.January},
		{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.February},
		{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2023, Month: time.January},
		{Ticker: "BTCUSD", Exchange: "coinbase", Year: 2024, Month: time.January},
		{Ticker: "ETHUSD", Exchange: "tiingo", Year: 2024, Month: time.January},
	}

	seenLocal := make(map[string]market.MonthKey)
	seenRemote := make(map[string]market.MonthKey)
	for _, key := range keys {
		local, remote, err := r.Resolve(key)
		if err != nil {
			t.Fatalf("Resolve(%v): %v", key, err)
		}
		if prev, ok := seenLocal[local]; ok {
			t.Errorf("local collision: %v and %v both map to %q", prev, key, local)
		}
		if prev, ok := seenRemote[remote]; ok {
			t.Errorf("remote collision: %v and %v both map to %q", prev, key, remote)
		}
		seenLocal[local] = key
		seenRemote[remote] = key
	}
}

func TestResolveInvalidPartition(t *testing.T) {
	r := NewResolver("/data", "")

	bad := []market.MonthKey{
		{Ticker: "", Exchange: "tiingo", Year: 2024, Month: time.January},
		{Ticker: "BTCUSD", Exchange: "", Year: 2024, Month: time.January},
		{Ticker: "BTCUSD", Exchange: "tiingo", Year: 1950, Month: time.January},
		{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: 13},
	}

	for _, key := range bad {
		if _, _, err := r.Resolve(key); !errors.Is(err, errors.ErrInvalidPartition) {
			t.Errorf("Resolve(%v) err = %v, want ErrInvalidPartition", key, err)
		}
	}
}

func TestFileName(t *testing.T) {
	key := market.MonthKey{Ticker: "BTCUSD", Exchange: "tiingo", Year: 2024, Month: time.September}
	if got := FileName(key); got != "BTCUSD_tiingo_202409.parquet" {
		t.Errorf("FileName = %q", got)
	}
}
