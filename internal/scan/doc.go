// Package scan builds a songs catalog from a local folder of audio files,
// for repositories that are filled by hand rather than through publish.
//
//	cat, err := scan.Generate(ctx, "music", scan.DefaultOptions(), nil)
//	err = scan.WriteCatalog(ctx, "songs.json", cat)
package scan
