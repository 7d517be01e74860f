package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"benchsite/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		visitor  = flag.String("visitor", "", "Visitor ID whose notice flags to list")
		source   = flag.String("source", "", "Dataset URL whose stored snapshot to show")
		purge    = flag.Bool("purge", false, "Remove expired flags")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	if *visitor != "" {
		names, err := store.Flags(*visitor)
		if err != nil {
			log.Fatalf("Failed to list flags: %v", err)
		}
		fmt.Printf("\nActive flags for %s:\n", *visitor)
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		if len(names) == 0 {
			fmt.Println("  (none)")
		}
	}

	if *source != "" {
		snap, found, err := store.LatestSnapshot(*source)
		if err != nil {
			log.Fatalf("Failed to read snapshot: %v", err)
		}
		if !found {
			fmt.Printf("\nNo snapshot stored for %s\n", *source)
		} else {
			fmt.Printf("\nSnapshot of %s fetched at %v, %d bytes\n", snap.Source, snap.FetchedAt, len(snap.Body))
		}
	}

	if *purge {
		removed, err := store.Purge(context.Background())
		if err != nil {
			log.Fatalf("Failed to purge flags: %v", err)
		}
		fmt.Printf("\nPurged %d expired flags\n", removed)
	}
}
