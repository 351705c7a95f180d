package lock

import "context"

// Do runs fn with the lock for key held, releasing it on every exit
// path including a panic inside fn. The boolean reports whether fn ran:
// false means the lock was contended (or lease arming exhausted its
// budget) and fn was never called.
func (l *Locker) Do(ctx context.Context, key string, fn func(ctx context.Context) error, opts ...AcquireOption) (bool, error) {
	g, err := l.Acquire(ctx, key, opts...)
	if err != nil {
		return false, err
	}
	if !g.Held() {
		return false, nil
	}
	return true, runReleased(ctx, g, fn)
}

// DoBlocking is Do built on AcquireBlocking: it waits for the lock
// instead of reporting contention, so the boolean is true unless the
// acquisition itself failed.
func (l *Locker) DoBlocking(ctx context.Context, key string, fn func(ctx context.Context) error, opts ...AcquireOption) (bool, error) {
	g, err := l.AcquireBlocking(ctx, key, opts...)
	if err != nil {
		return false, err
	}
	return true, runReleased(ctx, g, fn)
}

// runReleased executes fn and releases g no matter how fn exits.
// Release uses a fresh context so a ctx canceled inside fn cannot leak
// the key.
func runReleased(ctx context.Context, g *Guard, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rerr := g.Release(context.Background()); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(ctx)
}
