// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cryptobox.
//
// go-cryptobox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for go-cryptobox
// operations: operation counters, latency histograms, error counters by
// error type, key ring gauges and process resource gauges. Short-lived
// processes such as the CLI can dump the registry in the node exporter
// textfile format with WriteTextfile.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all cryptobox metrics
	Namespace = "cryptobox"

	// Label names
	LabelOperation = "operation"
	LabelCipher    = "cipher"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelKeyring   = "keyring"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Box operation names
	OpGenerateKeyPair    = "generate_key_pair"
	OpGenerateKey        = "generate_key"
	OpDeriveKey          = "derive_key"
	OpDeriveBits         = "derive_bits"
	OpDerivePassword     = "derive_password"
	OpImportKey          = "import_key"
	OpExportKey          = "export_key"
	OpEncrypt            = "encrypt"
	OpDecrypt            = "decrypt"
	OpEncryptTo          = "encrypt_to"
	OpDecryptFrom        = "decrypt_from"
	OpExportPublicKey    = "export_public_key"
	OpImportPublicKey    = "import_public_key"
	OpExportPrivateKey   = "export_private_key"
	OpImportPrivateKey   = "import_private_key"
	OpExportEncryptedKey = "export_encrypted_key"
	OpImportEncryptedKey = "import_encrypted_key"
	OpFingerprint        = "fingerprint"

	// Key ring operation names
	OpKeyringStore  = "keyring_store"
	OpKeyringLoad   = "keyring_load"
	OpKeyringDelete = "keyring_delete"
	OpKeyringList   = "keyring_list"
)

var (
	// OperationsTotal tracks the total number of operations by name, cipher
	// suite and status. Use RecordOperation to increment it.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of cryptobox operations by type, cipher and status",
		},
		[]string{LabelOperation, LabelCipher, LabelStatus},
	)

	// OperationDuration tracks operation latency in seconds. PBKDF2 at
	// 64000 iterations dominates the envelope operations, hence the upper
	// buckets.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of cryptobox operations in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelOperation, LabelCipher},
	)

	// ErrorsTotal tracks failed operations by error type, such as
	// "malformed_envelope" or "authentication_failed".
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, cipher and error type",
		},
		[]string{LabelOperation, LabelCipher, LabelErrorType},
	)

	// KeysTotal tracks the number of entries held by each key ring backend.
	KeysTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_total",
			Help:      "Total number of keys stored in each key ring",
		},
		[]string{LabelKeyring},
	)

	// Goroutines tracks the current number of goroutines.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC stop-the-world pauses.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
//
// Parameters:
//   - operation: The operation name (use Op* constants)
//   - cipher: The cipher suite, such as "ECDH-P-521-AES-256-CBC"
//   - status: The operation status (use Status* constants)
//   - duration: The operation duration in seconds
func RecordOperation(operation, cipher, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, cipher, status).Inc()
	OperationDuration.WithLabelValues(operation, cipher).Observe(duration)
}

// RecordError records a failed operation by error type.
//
// Example:
//
//	if errors.Is(err, envelope.ErrMalformedEnvelope) {
//	    RecordError(OpImportEncryptedKey, cipher, "malformed_envelope")
//	}
func RecordError(operation, cipher, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, cipher, errorType).Inc()
}

// SetKeysTotal sets the number of keys held by a key ring backend.
func SetKeysTotal(keyring string, count float64) {
	if !enabled.Load() {
		return
	}
	KeysTotal.WithLabelValues(keyring).Set(count)
}

// WriteTextfile refreshes the resource gauges and writes every metric
// registered with the default registry to path in the text exposition
// format. The file is written atomically.
func WriteTextfile(path string) error {
	CollectOnce()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
