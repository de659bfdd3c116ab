package main

import (
	"errors"
	"os"

	"github.com/bnema/openclaw-memory/cmd"
	"github.com/bnema/openclaw-memory/internal/domain"
)

// exitBusy is EX_TEMPFAIL: another consolidation holds the lock, try later.
const exitBusy = 75

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, domain.ErrConsolidationBusy) {
			os.Exit(exitBusy)
		}
		os.Exit(1)
	}
}
