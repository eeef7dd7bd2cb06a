package service

import (
	"context"
	"sync"
)

// Pool 是 CPU 密集计算的固定大小工作池。
//
// 作用：把矩阵构建 + 相似度计算从接收请求的 goroutine 上挪走，
// 并把同时进行的计算数量压在固定上限内，慢计算不会饿死并发请求接收。
//
// 一个任务一旦开始就不可中断；调用方的 ctx 超时只是放弃等待，
// 结果算完后被丢弃（out 带缓冲，worker 不会因此阻塞）。
type Pool struct {
	tasks chan task
	wg    sync.WaitGroup
	once  sync.Once
}

type task struct {
	run func() []string
	out chan []string
}

// NewPool 启动 workers 个工作协程；workers <= 0 时取 4。
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{tasks: make(chan task)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.out <- t.run()
	}
}

// Submit 提交一个计算任务并等待结果。
// ctx 在排队或等待结果期间到期时返回 ctx.Err()。
func (p *Pool) Submit(ctx context.Context, fn func() []string) ([]string, error) {
	t := task{run: fn, out: make(chan []string, 1)}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-t.out:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 停止接收新任务并等待在途任务完成。
func (p *Pool) Close() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
