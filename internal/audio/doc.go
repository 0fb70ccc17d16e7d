// Package audio provides audio file manipulation services including
// ID3 tag writing and playlist generation for mirrored songs.
//
// # ID3 Tagging
//
// Use the Tagger to write a catalog record into an MP3 file:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(path, song, artworkBytes)
//
// The tagger supports:
//   - Title and Genre
//   - Year and Date, from the song date
//   - The AI model label, as a comment
//   - Cover Art (embedded in MP3)
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist("canciones", songs)
//	os.WriteFile("canciones.m3u", []byte(content), 0644)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
