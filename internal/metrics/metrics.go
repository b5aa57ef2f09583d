package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recordings_created_total",
			Help: "Total number of recordings stored",
		},
	)
	RecordingsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recordings_deleted_total",
			Help: "Total number of recordings deleted",
		},
	)
	UploadErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recording_upload_errors_total",
			Help: "Total number of failed recording uploads",
		},
	)
	BytesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recording_bytes_stored",
			Help: "Bytes currently used by stored recordings",
		},
	)
	OrphanBlobsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orphan_blobs_swept_total",
			Help: "Total number of orphaned blobs removed by the sweeper",
		},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(
		RecordingsCreated,
		RecordingsDeleted,
		UploadErrors,
		BytesStored,
		OrphanBlobsSwept,
	)
}
