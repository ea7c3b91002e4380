package model

// DownloadState is the tracker's state discriminant, `s` on the wire.
type DownloadState string

const (
	DownloadPending DownloadState = "p"
	DownloadDone    DownloadState = "d"
	DownloadFailed  DownloadState = "f"
)

// TrackerRecord is one line of downloads.ndjson. The tracker's in-memory
// state is a fold of every TrackerRecord ever appended, keyed by
// (Kind, ID); the log itself is the only source of truth (§4.C).
type TrackerRecord struct {
	Kind    AssetKind     `json:"k"`
	ID      string        `json:"id"`
	State   DownloadState `json:"s"`
	Retries int           `json:"n,omitempty"`
}

// TrackerKey identifies one asset across repeated enqueue/retry cycles.
type TrackerKey struct {
	Kind AssetKind
	ID   string
}
