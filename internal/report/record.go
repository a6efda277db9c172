package report

import (
	"sort"
	"strings"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
)

// Record is the flat, serializable form of a ConnectionResult.
// The jsonl and csv writers and the SQLite export share it, so every output
// carries the same field names.
type Record struct {
	ScannedAt  time.Time         `json:"scanned_at"`
	IP         string            `json:"ip"`
	Port       uint16            `json:"port"`
	Host       string            `json:"host,omitempty"`
	Protocol   string            `json:"protocol"`
	Mode       string            `json:"mode"`
	Status     string            `json:"status"`
	Phase      string            `json:"phase,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Note       string            `json:"note,omitempty"`
	Banner     string            `json:"banner,omitempty"`
	BannerHex  string            `json:"banner_hex,omitempty"`
	BannerSHA3 string            `json:"banner_sha3,omitempty"`
	Truncated  bool              `json:"truncated"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ElapsedMS  int64             `json:"elapsed_ms"`
	ConnectMS  int64             `json:"connect_ms"`
}

// NewRecord flattens a result.
func NewRecord(r *model.ConnectionResult) Record {
	banner := r.BannerView()
	o := r.Outcome

	return Record{
		ScannedAt:  r.ScannedAt.UTC(),
		IP:         r.Target.Addr.Addr().String(),
		Port:       r.Target.Port(),
		Host:       r.Target.Host,
		Protocol:   r.Protocol,
		Mode:       r.Mode.String(),
		Status:     r.Status(),
		Phase:      string(o.Phase),
		Reason:     o.Reason,
		Note:       o.Note,
		Banner:     banner.Printable(),
		BannerHex:  banner.Hex(),
		BannerSHA3: banner.Digest(),
		Truncated:  o.Truncated,
		Metadata:   o.Metadata,
		ElapsedMS:  r.Elapsed.Milliseconds(),
		ConnectMS:  r.ConnectTime.Milliseconds(),
	}
}

// MetadataString renders the metadata as "key=value" pairs joined by ';',
// sorted by key.
func (r Record) MetadataString() string {
	if len(r.Metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + r.Metadata[k]
	}
	return strings.Join(pairs, ";")
}
