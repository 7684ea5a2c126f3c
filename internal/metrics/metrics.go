// Package metrics renders hub statistics in the Prometheus text format.
package metrics

import (
	"io"
	"net/http"

	"github.com/erilali/wshub/internal/hub"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

const namespace = "wshub"

// Families converts a stats snapshot into metric families, in a fixed order.
func Families(s hub.Stats) []*dto.MetricFamily {
	return []*dto.MetricFamily{
		gauge("clients", "Clients currently registered.", float64(s.Clients)),
		gauge("max_clients", "Configured client limit, 0 when unlimited.", float64(s.MaxClients)),
		counter("registrations_total", "Successful registrations.", s.Registrations),
		counter("registrations_rejected_total", "Registrations refused because the hub was full.", s.Rejections),
		counter("unregistrations_total", "Clients removed from the registry.", s.Unregistrations),
		counter("broadcasts_total", "Messages fanned out.", s.Broadcasts),
		counter("deliveries_total", "Payloads queued for a client.", s.Deliveries),
		counter("delivery_failures_total", "Sends that failed or timed out.", s.DeliveryFailures),
	}
}

// Write encodes the families for s to w in the text exposition format.
func Write(w io.Writer, s hub.Stats) error {
	enc := expfmt.NewEncoder(w, textFormat())
	for _, mf := range Families(s) {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the current stats from source on every request.
func Handler(source func() hub.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", string(textFormat()))
		if err := Write(w, source()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func textFormat() expfmt.Format {
	return expfmt.NewFormat(expfmt.TypeTextPlain)
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + "_" + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v uint64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + "_" + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(float64(v))}}},
	}
}
