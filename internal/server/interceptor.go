package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "rard_http_request_duration_seconds",
	Help:    "Time spent serving api requests.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// RequestTimeInterceptor logs and observes the time spent in every request.
func RequestTimeInterceptor() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqTime := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Observe(reqTime.Seconds())
		logrus.Debugf("request time: %s %s: %v", c.Request.Method, route, reqTime)
	}
}
