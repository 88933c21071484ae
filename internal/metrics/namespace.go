// Package metrics exposes application metrics collectors.
package metrics

const namespace = "evm_tx_exporter"

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
