package audio

import (
	"fmt"
	"strings"

	"github.com/thegaspygames/canciones/internal/model"
)

// PlaylistFormat represents supported playlist file formats.
//
// Each format has different features and compatibility:
//   - M3U: Simple text format, widely supported
//   - PLS: INI-style format, used by Winamp
//   - WPL: XML format, Windows Media Player
//   - ZPL: XML format, Zune/Groove Music
type PlaylistFormat int

const (
	// FormatM3U creates .m3u files (most compatible).
	FormatM3U PlaylistFormat = iota

	// FormatPLS creates .pls files (Winamp/SHOUTcast format).
	FormatPLS

	// FormatWPL creates .wpl files (Windows Media Player).
	FormatWPL

	// FormatZPL creates .zpl files (Zune/Groove Music).
	FormatZPL
)

// ParsePlaylistFormat maps a config value (m3u, pls, wpl, zpl) to a
// PlaylistFormat, defaulting to M3U.
func ParsePlaylistFormat(s string) PlaylistFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pls":
		return FormatPLS
	case "wpl":
		return FormatWPL
	case "zpl":
		return FormatZPL
	default:
		return FormatM3U
	}
}

// Extension returns the file extension for the format, without the dot.
func (f PlaylistFormat) Extension() string {
	switch f {
	case FormatPLS:
		return "pls"
	case FormatWPL:
		return "wpl"
	case FormatZPL:
		return "zpl"
	default:
		return "m3u"
	}
}

// PlaylistCreator generates playlist files in various formats.
//
// Entries point at each song's DownloadName, so the playlist is meant to
// sit in the same directory as the mirrored files. Durations are not known
// from the catalog and are written as -1 where a format asks for one.
//
// Example:
//
//	creator := NewPlaylistCreator(FormatM3U, true)
//	content := creator.CreatePlaylist("canciones", songs)
//
//	// Result:
//	// #EXTM3U
//	// #EXTINF:-1,Noche de Lluvia
//	// Noche de Lluvia.mp3
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // For M3U: include EXTINF lines
}

// NewPlaylistCreator creates a new PlaylistCreator.
//
// extended only affects M3U output.
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{
		format:   format,
		extended: extended,
	}
}

// Format returns the playlist format.
func (p *PlaylistCreator) Format() PlaylistFormat {
	return p.format
}

// CreatePlaylist generates playlist content named title for songs, in
// order.
func (p *PlaylistCreator) CreatePlaylist(title string, songs []model.Song) string {
	switch p.format {
	case FormatM3U:
		return p.createM3U(songs)
	case FormatPLS:
		return p.createPLS(songs)
	case FormatWPL:
		return p.createWPL(title, songs)
	case FormatZPL:
		return p.createZPL(title, songs)
	default:
		return p.createM3U(songs)
	}
}

func (p *PlaylistCreator) createM3U(songs []model.Song) string {
	var sb strings.Builder

	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}

	for _, s := range songs {
		if p.extended {
			fmt.Fprintf(&sb, "#EXTINF:-1,%s\n", s.Title)
		}
		sb.WriteString(s.DownloadName + "\n")
	}

	return sb.String()
}

// createPLS generates a PLS playlist:
//
//	[playlist]
//	File1=Noche de Lluvia.mp3
//	Title1=Noche de Lluvia
//	Length1=-1
//	NumberOfEntries=1
//	Version=2
func (p *PlaylistCreator) createPLS(songs []model.Song) string {
	var sb strings.Builder

	sb.WriteString("[playlist]\n")

	for i, s := range songs {
		idx := i + 1
		fmt.Fprintf(&sb, "File%d=%s\n", idx, s.DownloadName)
		fmt.Fprintf(&sb, "Title%d=%s\n", idx, s.Title)
		fmt.Fprintf(&sb, "Length%d=-1\n", idx)
	}

	fmt.Fprintf(&sb, "NumberOfEntries=%d\n", len(songs))
	sb.WriteString("Version=2\n")

	return sb.String()
}

func (p *PlaylistCreator) createWPL(title string, songs []model.Song) string {
	var sb strings.Builder

	sb.WriteString("<?wpl version=\"1.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", escapeXML(title))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, s := range songs {
		fmt.Fprintf(&sb, "      <media src=\"%s\"/>\n", escapeXML(s.DownloadName))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// createZPL is WPL plus per-entry metadata. The genre goes in albumTitle
// and the AI model in trackArtist, the closest fields Zune offers.
func (p *PlaylistCreator) createZPL(title string, songs []model.Song) string {
	var sb strings.Builder

	sb.WriteString("<?zpl version=\"2.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", escapeXML(title))
	sb.WriteString("    <meta name=\"Generator\" content=\"canciones\"/>\n")
	fmt.Fprintf(&sb, "    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(songs))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, s := range songs {
		fmt.Fprintf(&sb, "      <media src=\"%s\" albumTitle=\"%s\" trackTitle=\"%s\" trackArtist=\"%s\"/>\n",
			escapeXML(s.DownloadName),
			escapeXML(s.Genre),
			escapeXML(s.Title),
			escapeXML(s.AIModel))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// escapeXML escapes special XML characters in a string.
//
// Replaces: & < > " '
// With:     &amp; &lt; &gt; &quot; &apos;
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
