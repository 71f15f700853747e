// Package concurrency holds small goroutine-lifecycle helpers shared by
// the reaper and the lifecycle package.
package concurrency

import "sync"

// DoneChan is closed once whatever it represents has finished.
type DoneChan chan struct{}

// DoneFunc starts a shutdown and returns a channel that closes when it
// completes.
type DoneFunc func() DoneChan

// WrapWaitGroup returns a DoneChan that closes once wg.Wait returns.
func WrapWaitGroup(wg *sync.WaitGroup) DoneChan {
	ret := make(DoneChan)
	go func() {
		wg.Wait()
		close(ret)
	}()
	return ret
}

// Combine waits on both channels before closing the returned one.
func Combine(first, second DoneChan) DoneChan {
	ret := make(DoneChan)
	go func() {
		<-first
		<-second
		close(ret)
	}()
	return ret
}
