// Package download mirrors the song catalog to a local directory.
//
// # Manager
//
// The Manager coordinates the mirror:
//
//  1. Load the catalog and apply an optional filter
//  2. Assign every song a unique, sanitized local file name
//  3. Download songs concurrently, skipping files already present
//  4. Tag MP3 files with ID3 metadata and the cover
//  5. Generate a playlist (optional)
//
// # Basic Usage
//
//	manager := download.NewManager(&settings.Download, aggregator, nil, func(e progress.Event) {
//	    fmt.Println(e.Message)
//	})
//
//	if err := manager.Initialize(ctx, model.Query{Genre: "Lo-fi"}); err != nil {
//	    log.Fatal(err)
//	}
//	if err := manager.StartDownloads(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Retry Logic
//
// Failed downloads are retried up to download.max_retries times, waiting
// retry_cooldown * retry_exponent^n seconds before attempt n+1.
package download
