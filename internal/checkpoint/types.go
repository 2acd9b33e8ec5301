package checkpoint

import (
	"time"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
)

// #region record
// Record is one persisted policy version. Actor and critic are stored as
// independent blobs so either can be loaded on its own.
type Record struct {
	VersionID   string
	ParentID    string
	ActorBlob   []byte
	CriticBlob  []byte
	Episode     int
	CreatedAt   time.Time
	MetricsJSON string
}

// Params decodes the record's blobs.
func (r Record) Params() (policy.Params, error) {
	return policy.UnmarshalParams(r.ActorBlob, r.CriticBlob)
}

// #endregion record

// #region version-with-log
// VersionWithLog pairs a policy version with the episode log row that
// produced it.
type VersionWithLog struct {
	Record
	TotalReward float64
	Decision    string
	Reason      string
}

// #endregion version-with-log
