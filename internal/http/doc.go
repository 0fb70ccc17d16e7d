// Package http provides the HTTP client shared by the canciones
// integrations.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Cache-defeating GETs for catalog documents
//   - File downloads with progress tracking
//   - File size retrieval via HEAD requests
//   - Timeout handling
//
// # Basic Usage
//
//	client := http.NewClient()
//
//	// Fetch a catalog file without hitting any cache
//	data, err := client.GetFresh(ctx, "https://raw.githubusercontent.com/o/r/main/songs.json")
//
//	// Download file with progress callback
//	client.DownloadFile(ctx, mp3URL, "/path/to/file.mp3", func(written, total int64) {
//	    fmt.Printf("%.1f%%\n", float64(written)/float64(total)*100)
//	})
//
// Non-200 answers surface as *StatusError so callers can branch on the code:
//
//	var se *http.StatusError
//	if errors.As(err, &se) && se.StatusCode == 404 {
//	    // absent
//	}
package http
