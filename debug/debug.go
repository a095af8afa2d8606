package debug

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//
// Debug output is controled by the KERNDEBUG environment variable,
// which can be a list of selectors (e.g., "PIDTABLE;FDTABLE").
//

const KERNDEBUG = "KERNDEBUG"

var (
	mu     sync.Mutex
	labels map[Tselector]bool
	logger *zap.SugaredLogger
	name   = "kernel"
)

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	cfg.EncoderConfig.EncodeCaller = nil
	cfg.EncoderConfig.StacktraceKey = ""
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug: zap %v\n", err)
		os.Exit(1)
	}
	logger = l.Sugar()
	labels = parseLabels(os.Getenv(KERNDEBUG))
}

func parseLabels(s string) map[Tselector]bool {
	m := make(map[Tselector]bool)
	if s == "" {
		return m
	}
	for _, l := range strings.Split(s, ";") {
		m[Tselector(strings.TrimSpace(l))] = true
	}
	return m
}

// Replace the selector set, e.g. from a config file.
func SetLabels(s string) {
	mu.Lock()
	defer mu.Unlock()
	labels = parseLabels(s)
}

// Name the component in every line of output.
func Name(n string) {
	mu.Lock()
	defer mu.Unlock()
	name = n
}

func WillBePrinted(label Tselector) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := labels[label]
	return ok || label == ALWAYS || label == ERROR
}

func DPrintf(label Tselector, format string, v ...interface{}) {
	if WillBePrinted(label) {
		logger.Infof("%v %v %v", name, label, fmt.Sprintf(format, v...))
	}
}

func DFatalf(format string, v ...interface{}) {
	// Get info for the caller.
	pc, file, line, ok := runtime.Caller(1)
	fnDetails := runtime.FuncForPC(pc)
	if ok && fnDetails != nil {
		logger.Fatalf("FATAL %v %v %v:%v %v", name, fnDetails.Name(), file, line, fmt.Sprintf(format, v...))
	} else {
		logger.Fatalf("FATAL %v (missing details) %v", name, fmt.Sprintf(format, v...))
	}
}
