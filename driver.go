package nbsftp

import (
	"code.hybscloud.com/iox"
)

// driver repeats an engine call until it no longer needs the socket.
type driver struct {
	directions func() Direction
	abandon    func()
	selector   Selector
	metrics    *Metrics
}

// run calls call until it returns something other than iox.ErrWouldBlock.
// Between calls it waits for the socket in the directions the engine is blocked on.
// It gives up with iox.ErrWouldBlock once a wait elapses and t says to stop,
// abandoning the unfinished call first.
func (d driver) run(t Timeout, call func() error) error {
	for {
		err := call()
		if !iox.IsWouldBlock(err) {
			return err
		}

		for {
			dir := d.directions()
			d.metrics.waited(dir)

			if d.selector.Wait(dir, t.Period()) {
				break
			}

			if !t.keepWaiting() {
				if d.abandon != nil {
					d.abandon()
				}
				return iox.ErrWouldBlock
			}
		}
	}
}
