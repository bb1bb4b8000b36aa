package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shehryarbajwa/smiles-flights/internal/config"
	"github.com/shehryarbajwa/smiles-flights/internal/extract"
	"github.com/shehryarbajwa/smiles-flights/internal/format"
	"github.com/shehryarbajwa/smiles-flights/internal/snapshot"
)

// replay re-runs extraction and formatting against a saved results page
func main() {
	cfg := config.Load()

	snapshotID := flag.String("snapshot", "", "Snapshot id from SNAPSHOT_DIR")
	dir := flag.String("dir", cfg.SnapshotDir, "Snapshot directory")
	file := flag.String("file", "", "Saved page (.html or .html.gz) to read instead of a snapshot")
	limit := flag.Int("limit", cfg.MaxOffers, "Maximum offers to extract")
	date := flag.String("date", "", "Travel date (YYYY-MM-DD) shown in the header")
	asJSON := flag.Bool("json", false, "Print offers as JSON instead of chat messages")
	flag.Parse()

	markup, err := readMarkup(*snapshotID, *dir, *file)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	result, err := extract.ParseOffers(markup, *limit)
	if err != nil {
		log.Fatalf("❌ Failed to parse page: %v", err)
	}

	if result.NoResults {
		log.Println("✅ Page lists no flights")
		return
	}
	log.Printf("✅ Extracted %d offers", len(result.Offers))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Offers); err != nil {
			log.Fatalf("❌ Failed to encode offers: %v", err)
		}
		return
	}

	for i, chunk := range format.Format(result.Offers, *date) {
		fmt.Printf("── message %d ──\n%s\n", i+1, chunk)
	}
}

func readMarkup(snapshotID, dir, file string) (string, error) {
	switch {
	case file != "":
		return snapshot.ReadFile(file)
	case snapshotID != "":
		if dir == "" {
			return "", fmt.Errorf("-dir or SNAPSHOT_DIR is required with -snapshot")
		}
		store, err := snapshot.NewStore(dir)
		if err != nil {
			return "", err
		}
		return store.Load(snapshotID)
	default:
		return "", fmt.Errorf("one of -snapshot or -file is required")
	}
}
