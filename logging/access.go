package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	gwnet "github.com/erfianugrah/do-rl-worker/net"
)

const (
	dateFormat      = "02/Jan/2006:15:04:05 -0700"
	commonLogFormat = `%s - - [%s] "%s %s %s" %d %d`
	// format:
	// remote_host - - [date] "method uri protocol" status response_size "referer" "user_agent"
	combinedLogFormat = commonLogFormat + ` "%s" "%s"`
	// we add the pipeline duration, matched rule and action
	accessLogFormat = combinedLogFormat + " %d %s %s\n"
)

type accessLogFormatter struct {
	format string
}

// AccessEntry describes the outcome of one pipeline run, for the access
// log.
type AccessEntry struct {
	// The client request.
	Request *http.Request

	// The status code written to the client.
	StatusCode int

	// The size of the response in bytes.
	ResponseSize int64

	// The time spent running the pipeline end to end.
	Duration time.Duration

	// The time that the request was received.
	RequestTime time.Time

	// The ID of the rule that produced the verdict, empty when no
	// rule matched.
	RuleID string

	// The type of the matched action (e.g. "rateLimit", "block", "log");
	// an empty value is logged as "-".
	Action string
}

var accessLog *logrus.Logger

// remoteHost returns the client's address for the access log, deferring
// to the net package's X-Forwarded-For-aware resolution so the log and
// the fingerprinter agree on what "the client" means.
func remoteHost(r *http.Request) string {
	if ip := gwnet.RemoteHost(r); ip != nil {
		return ip.String()
	}

	return "-"
}

func (f *accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	keys := []string{
		"host", "timestamp", "method", "uri", "proto",
		"status", "response-size", "referer", "user-agent",
		"duration", "rule", "action"}

	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = e.Data[key]
	}

	return []byte(fmt.Sprintf(f.format, values...)), nil
}

// LogAccess logs one pipeline run in Apache combined log format, extended
// with the pipeline duration, the matched rule ID and the action taken.
func LogAccess(entry *AccessEntry) {
	if accessLog == nil || entry == nil {
		return
	}

	ts := entry.RequestTime.Format(dateFormat)

	host := "-"
	method := ""
	uri := ""
	proto := ""
	referer := ""
	userAgent := ""

	status := entry.StatusCode
	responseSize := entry.ResponseSize
	duration := int64(entry.Duration / time.Millisecond)

	rule := entry.RuleID
	if rule == "" {
		rule = "-"
	}
	action := entry.Action
	if action == "" {
		action = "-"
	}

	if entry.Request != nil {
		host = remoteHost(entry.Request)
		method = entry.Request.Method
		uri = entry.Request.RequestURI
		proto = entry.Request.Proto
		referer = entry.Request.Referer()
		userAgent = entry.Request.UserAgent()
	}

	accessLog.WithFields(logrus.Fields{
		"timestamp":     ts,
		"host":          host,
		"method":        method,
		"uri":           uri,
		"proto":         proto,
		"referer":       referer,
		"user-agent":    userAgent,
		"status":        status,
		"response-size": responseSize,
		"duration":      duration,
		"rule":          rule,
		"action":        action,
	}).Infoln()
}
