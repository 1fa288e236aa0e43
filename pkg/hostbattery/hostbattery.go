// Package hostbattery reports the State-of-Health of the batteries in the
// machine the daemon runs on.
package hostbattery

import (
	"errors"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battsense/pkg/soh"
)

// ErrNoBattery is returned when no battery reports a design capacity.
var ErrNoBattery = errors.New("no battery with a design capacity found")

// Reading is the health of one host battery. Capacities are in mWh.
type Reading struct {
	Index     int        `json:"index"`
	FullMWh   float64    `json:"fullMWh"`
	DesignMWh float64    `json:"designMWh"`
	Ratio     float64    `json:"ratio"`
	Percent   int        `json:"percent"`
	Status    soh.Status `json:"status"`
}

type lister func() ([]*battery.Battery, error)

// Read returns the health of the first battery that reports a design
// capacity.
func Read() (*Reading, error) {
	return read(battery.GetAll)
}

func read(list lister) (*Reading, error) {
	batteries, err := list()
	if err != nil {
		if len(batteries) == 0 {
			return nil, pkgerrors.Wrap(err, "failed to read batteries")
		}
		// Some batteries may still be usable.
		logrus.Warnf("partial battery read: %v", err)
	}

	for i, b := range batteries {
		if b == nil || b.Design <= 0 {
			continue
		}
		ratio := b.Full / b.Design
		return &Reading{
			Index:     i,
			FullMWh:   b.Full,
			DesignMWh: b.Design,
			Ratio:     ratio,
			Percent:   soh.Percent(ratio),
			Status:    soh.Classify(ratio),
		}, nil
	}

	return nil, ErrNoBattery
}
