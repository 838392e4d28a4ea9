// Package metrics Prometheus 指标
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register 由各指标文件的 init 调用
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister 向默认注册表注册全部指标，只执行一次
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}
