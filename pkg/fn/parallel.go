package fn

import "sync"

// Go runs fns concurrently and waits for all of them.
func Go(fns ...func()) {
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for _, f := range fns {
		go func() {
			defer wg.Done()
			f()
		}()
	}
	wg.Wait()
}
