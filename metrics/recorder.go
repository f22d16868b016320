// Copyright (C) 2022 CYBERCRYPT
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Domain is the domain label attached to every recorded operation.
const Domain = "encryption"

// Operation names.
const (
	OperationSetup   = "setup"
	OperationUnlock  = "unlock"
	OperationLock    = "lock"
	OperationRestore = "restore"
	OperationReset   = "reset"
	OperationMigrate = "migrate_entry"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder records operation counts and durations.
type Recorder interface {
	// Observe records one operation that started at start and ended with err.
	Observe(ctx context.Context, operation string, start time.Time, err error)
}

// StatusOf maps an operation error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

type recorder struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
}

// NewRecorder creates a Recorder whose instruments are prefixed with namespace.
func NewRecorder(meterProvider metric.MeterProvider, namespace string) (Recorder, error) {
	meter := meterProvider.Meter(namespace)

	operations, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of encryption operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durations, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of encryption operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &recorder{operations: operations, durations: durations}, nil
}

func (r *recorder) Observe(ctx context.Context, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("domain", Domain),
		attribute.String("operation", operation),
		attribute.String("status", StatusOf(err)),
	)
	r.operations.Add(ctx, 1, attrs)
	r.durations.Record(ctx, time.Since(start).Seconds(), attrs)
}

// NoOp is a Recorder that discards everything.
type NoOp struct{}

func (NoOp) Observe(ctx context.Context, operation string, start time.Time, err error) {}
