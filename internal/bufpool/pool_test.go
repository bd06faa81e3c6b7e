package bufpool

import "testing"

func TestPool_GetPut(t *testing.T) {
	pool := New(4096)

	buf := pool.Get()
	if len(buf) != 4096 {
		t.Errorf("len = %d, want 4096", len(buf))
	}
	pool.Put(buf)

	again := pool.Get()
	if len(again) != 4096 {
		t.Errorf("len after reuse = %d, want 4096", len(again))
	}
	if pool.BufSize() != 4096 {
		t.Errorf("BufSize = %d, want 4096", pool.BufSize())
	}
}

func TestPool_DropsUndersizedBuffers(t *testing.T) {
	pool := New(4096)
	pool.Put(make([]byte, 16))

	buf := pool.Get()
	if len(buf) != 4096 {
		t.Errorf("len = %d, want 4096", len(buf))
	}
}

func TestPool_PanicsOnNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%d) did not panic", size)
				}
			}()
			New(size)
		}()
	}
}
