package voting

import (
	"time"

	"github.com/courtside/livevote/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options carries the collaborators shared by the voting services. Zero
// values fall back to a no-op notifier, the default retry policy, the shared
// logger, the wall clock and random UUIDs.
type Options struct {
	Notifier Notifier
	Retry    RetryPolicy
	Logger   *logrus.Logger
	Clock    func() time.Time
	NewID    func() string
}

func (o Options) resolve() Options {
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	o.Retry = o.Retry.resolve()
	o.Logger = logging.Resolve(o.Logger)
	if o.Clock == nil {
		o.Clock = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}
