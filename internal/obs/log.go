package obs

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger. Everything the service emits, from
// request logs to write intents, goes through it as one JSON object per line.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Log emits one JSON line. The intent log doubles as the audit trail for
// mutations, so an entry that cannot be marshaled still produces a line
// naming the failure instead of silently dropping the event.
func Log(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"unloggable entry","error":` + strconv.Quote(err.Error()) + `}`)
		return
	}
	Logger().Println(string(data))
}
