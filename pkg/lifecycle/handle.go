package lifecycle

import (
	"context"
	"time"
)

// Handle 是后台服务（对账调度、Redis健康检查、索引同步）持有的停机凭证。
// 服务通过它感知停机信号，并在退出时调用 Close 让 Manager 停止等待。
type Handle struct {
	ctx context.Context
	// Close 可以重复调用，只有第一次生效
	Close func()
}

// Ctx 返回在停机时被取消的ctx，服务发起的数据库和Redis调用都应使用它
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done 在停机信号发出后关闭
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err 返回停机原因，停机前为 nil
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep 等待 duration，停机时提前返回停机原因
func (h *Handle) Sleep(duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}

// Every 每隔 interval 执行一次 run，直到停机。run 本身耗时不计入间隔，
// 因此两次执行之间至少相隔 interval，慢任务不会堆积。
func (h *Handle) Every(interval time.Duration, run func(ctx context.Context)) error {
	for {
		if err := h.Sleep(interval); err != nil {
			return err
		}
		run(h.ctx)
	}
}
