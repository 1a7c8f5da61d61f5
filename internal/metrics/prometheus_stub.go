//go:build noprom

package metrics

import "net/http"

// When built with -tags noprom, provide a stub that does nothing.
func enablePrometheus() (http.Handler, error) { return nil, nil }
