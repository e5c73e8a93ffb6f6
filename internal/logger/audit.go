package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

var (
	auditMu  sync.Mutex
	auditLog *log.Logger
)

// SetAuditWriter redirects the order audit trail. Passing nil disables it;
// audit lines then fall through to the normal info log.
func SetAuditWriter(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if w == nil {
		auditLog = nil
		return
	}
	auditLog = log.New(w, "", log.LstdFlags|log.LUTC)
}

// Auditf records one line in the order audit trail. Every accepted state
// transition, fill and cancellation goes through here so that a session can
// be reconstructed without the main log's noise.
func Auditf(orderID, event, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	line := fmt.Sprintf("order=%s event=%s %s", strings.TrimSpace(orderID), event, msg)
	auditMu.Lock()
	l := auditLog
	auditMu.Unlock()
	if l == nil {
		Infof("%s", line)
		return
	}
	l.Println(line)
}
