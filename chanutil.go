package taskstatus

// unexported helpers relating to channels

var alwaysClosed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func isClosed(c <-chan struct{}) bool {
	if c == nil {
		return false
	}

	select {
	case <-c:
		return true
	default:
		return false
	}
}

// poke leaves a wakeup in c, a channel with capacity 1, unless one is already pending.
func poke(c chan<- struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
