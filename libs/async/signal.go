package async

// Signal adapts t to the lightweight no-result form: a channel that yields
// the task's error (nil on success) once and is then closed.
func Signal(t *Task) <-chan error {
	ch := make(chan error, 1)
	go func() {
		<-t.Done()
		ch <- t.Err()
		close(ch)
	}()
	return ch
}

// FromSignal turns a lightweight signal back into a task. A channel closed
// without a value counts as success. A nil channel never completes.
func FromSignal(ch <-chan error) *Task {
	t := NewTask()
	go func() {
		err := <-ch
		t.Complete(nil, err)
	}()
	return t
}
