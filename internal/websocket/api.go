package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"
)

// WebSocketMetricsHandler возвращает метрики хаба в JSON или, при ?format=prometheus,
// в текстовом формате Prometheus
func WebSocketMetricsHandler(provider MetricsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := provider.GetMetrics()

		if r.URL.Query().Get("format") == "prometheus" {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			renderPrometheusMetrics(w, metrics)
			return
		}

		metrics["generated_at"] = time.Now().Format(time.RFC3339)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metrics); err != nil {
			log.Printf("[WebSocketAPI] Ошибка сериализации метрик: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

// WebSocketHealthCheckHandler возвращает состояние хаба
func WebSocketHealthCheckHandler(provider MetricsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		statusCode := http.StatusOK
		clientCount := 0

		if provider != nil {
			clientCount = provider.ClientCount()
		} else {
			status = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"status":             status,
			"active_connections": clientCount,
			"timestamp":          time.Now().Format(time.RFC3339),
		}); err != nil {
			log.Printf("[WebSocketAPI] Ошибка сериализации health check: %v", err)
		}
	}
}

// renderPrometheusMetrics форматирует метрики в формате Prometheus
func renderPrometheusMetrics(w http.ResponseWriter, metrics map[string]interface{}) {
	descriptions := map[string]struct {
		help string
		typ  string
	}{
		"total_connections":        {"Total number of connections since server start", "counter"},
		"active_connections":       {"Current number of active connections", "gauge"},
		"connected_users":          {"Current number of users with at least one connection", "gauge"},
		"messages_sent":            {"Total number of messages queued for clients", "counter"},
		"messages_dropped":         {"Total number of messages dropped on full client buffers", "counter"},
		"messages_received":        {"Total number of messages received", "counter"},
		"inactive_clients_removed": {"Total number of inactive clients removed", "counter"},
		"uptime_seconds":           {"Server uptime in seconds", "gauge"},
	}

	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := metrics[name]
		if !ok {
			continue
		}
		d := descriptions[name]
		fmt.Fprintf(w, "# HELP websocket_%s %s\n", name, d.help)
		fmt.Fprintf(w, "# TYPE websocket_%s %s\n", name, d.typ)
		fmt.Fprintf(w, "websocket_%s %v\n", name, value)
	}

	if types, ok := metrics["message_types"].(map[string]int64); ok {
		for t, count := range types {
			fmt.Fprintf(w, "websocket_messages_received_by_type{type=%q} %d\n", t, count)
		}
	}
}
