package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/storage"
)

// Compact rewrites the database file to reclaim space left by deleted
// records
func Compact(ctx context.Context, cfg config.Config) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	c, ok := s.KV.(storage.Compactor)
	if !ok {
		fmt.Printf("The %s backend does not support compaction\n", cfg.Backend)
		return
	}

	info, err := os.Stat(cfg.DBPath)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := c.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(cfg.DBPath)
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
