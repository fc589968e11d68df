package queuebuild

// RawSearchFileEntry is one file from a peer-search response.
type RawSearchFileEntry struct {
	RemotePath string
	Owner      string
	Bitrate    int
	Extension  string
	SizeBytes  int64
}

// QueueItem is one planned download.
type QueueItem struct {
	Owner          string
	RemoteFileName string
	LocalFileName  string
	// AssignedTrackNumber is nil when no number could be inferred.
	AssignedTrackNumber *int
	SizeBytes           int64
}

// Request describes the release a listing is filtered for.
type Request struct {
	Artist  string
	Release string
	// ExpectedTrackCount is zero when unknown.
	ExpectedTrackCount  int
	ExpectedTrackTitles []string
	// MinBitrate in kbps; zero uses DefaultMinBitrate.
	MinBitrate int
}

// DefaultMinBitrate is the lowest accepted bitrate for lossy files, in kbps.
const DefaultMinBitrate = 192

// AudioExtensions are the accepted file extensions, without the dot.
var AudioExtensions = []string{"mp3", "flac", "m4a", "wav", "ogg"}

var losslessExtensions = map[string]struct{}{"flac": {}, "wav": {}}
