// Package paths maps monthly partitions onto the local file tree and the
// remote object store key space.
//
// The layout is shared by both sides:
//
//	local:  <root>/<ticker>/<exchange>/<YYYY>/<MM>/<ticker>_<exchange>_<YYYYMM>.parquet
//	remote: [<prefix>/]<ticker>/<exchange>/<YYYY>/<MM>/<ticker>_<exchange>_<YYYYMM>.parquet
//
// Resolution is deterministic and injective over valid partitions: the only
// inputs are the key fields and the configured root/prefix, so two distinct
// partitions can never collide and results are stable across restarts.
package paths

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/quantfold/tickvault/internal/market"
)

// Ext is the file extension for monthly files.
const Ext = ".parquet"

// Resolver maps MonthKeys to local paths and remote keys.
type Resolver struct {
	root   string
	prefix string
}

// NewResolver creates a resolver rooted at the local data directory.
// prefix is prepended to remote keys and may be empty.
func NewResolver(root, prefix string) *Resolver {
	return &Resolver{root: root, prefix: prefix}
}

// Resolve returns the canonical local path and remote key for a partition.
func (r *Resolver) Resolve(key market.MonthKey) (localPath, remoteKey string, err error) {
	if err := key.Validate(); err != nil {
		return "", "", err
	}

	filename := FileName(key)
	localPath = filepath.Join(r.root,
		key.Ticker, key.Exchange,
		fmt.Sprintf("%04d", key.Year), fmt.Sprintf("%02d", int(key.Month)),
		filename)

	remoteKey = path.Join(
		key.Ticker, key.Exchange,
		fmt.Sprintf("%04d", key.Year), fmt.Sprintf("%02d", int(key.Month)),
		filename)
	if r.prefix != "" {
		remoteKey = path.Join(r.prefix, remoteKey)
	}

	return localPath, remoteKey, nil
}

// LocalPath returns only the local path for a partition.
func (r *Resolver) LocalPath(key market.MonthKey) (string, error) {
	local, _, err := r.Resolve(key)
	return local, err
}

// RemoteKey returns only the remote key for a partition.
func (r *Resolver) RemoteKey(key market.MonthKey) (string, error) {
	_, remote, err := r.Resolve(key)
	return remote, err
}

// FileName returns the monthly file name, e.g. "BTCUSD_tiingo_202401.parquet".
func FileName(key market.MonthKey) string {
	return fmt.Sprintf("%s_%s_%04d%02d%s",
		key.Ticker, key.Exchange, key.Year, int(key.Month), Ext)
}
