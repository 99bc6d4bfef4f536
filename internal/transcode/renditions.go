package transcode

// Rendition is one rung of the fixed quality ladder. Every video runs
// through the whole ladder so playback clients can rely on the same
// set of labels for all processed content.
type Rendition struct {
	Label        string
	Height       int
	VideoBitrate string
	BitrateKbps  int
}

// Ladder is ordered highest quality first.
var Ladder = []Rendition{
	{Label: "1080p", Height: 1080, VideoBitrate: "5000k", BitrateKbps: 5000},
	{Label: "720p", Height: 720, VideoBitrate: "2500k", BitrateKbps: 2500},
	{Label: "480p", Height: 480, VideoBitrate: "1000k", BitrateKbps: 1000},
	{Label: "360p", Height: 360, VideoBitrate: "500k", BitrateKbps: 500},
}

// PlaybackOrder is the preference order used when a player asks for a
// stream without naming a rendition. 720p is the default because it is
// the best balance for typical connections.
var PlaybackOrder = []string{"720p", "1080p", "480p", "360p"}

// RenditionByLabel returns the ladder rung for a label, or nil.
func RenditionByLabel(label string) *Rendition {
	for i := range Ladder {
		if Ladder[i].Label == label {
			return &Ladder[i]
		}
	}
	return nil
}
