package loop

import (
	gomock "go.uber.org/mock/gomock"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("TaskQueue", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		queue      *TaskQueue
	)

	noop := func() error { return nil }

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		queue = NewTaskQueue(timeTeller)
	})

	ginkgo.AfterEach(func() {
		mockCtrl.Finish()
	})

	ginkgo.It("should compute due time from the current time", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(100))

		h := queue.Schedule(30, noop)

		Expect(h.task.DueTime()).To(Equal(VTimeInMs(130)))
	})

	ginkgo.It("should treat a negative delay as zero", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(100))

		h := queue.Schedule(-5, noop)

		Expect(h.task.DueTime()).To(Equal(VTimeInMs(100)))
	})

	ginkgo.It("should pop in due-time order", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(0)).AnyTimes()

		queue.Schedule(30, noop)
		queue.Schedule(10, noop)
		queue.Schedule(20, noop)

		Expect(queue.PopNextDue(100).DueTime()).To(Equal(VTimeInMs(10)))
		Expect(queue.PopNextDue(100).DueTime()).To(Equal(VTimeInMs(20)))
		Expect(queue.PopNextDue(100).DueTime()).To(Equal(VTimeInMs(30)))
		Expect(queue.PopNextDue(100)).To(BeNil())
	})

	ginkgo.It("should break due-time ties by scheduling order", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(0)).AnyTimes()

		first := queue.Schedule(10, noop)
		second := queue.Schedule(10, noop)
		third := queue.Schedule(10, noop)

		Expect(queue.PopNextDue(10).ID).To(Equal(first.TaskID()))
		Expect(queue.PopNextDue(10).ID).To(Equal(second.TaskID()))
		Expect(queue.PopNextDue(10).ID).To(Equal(third.TaskID()))
	})

	ginkgo.It("should not pop tasks that are not yet due", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(0)).AnyTimes()

		queue.Schedule(50, noop)

		Expect(queue.PopNextDue(49)).To(BeNil())
		Expect(queue.PopNextDue(50)).NotTo(BeNil())
	})

	ginkgo.It("should skip canceled tasks", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(0)).AnyTimes()

		h1 := queue.Schedule(10, noop)
		h2 := queue.Schedule(20, noop)

		queue.Cancel(h1)

		Expect(queue.PopNextDue(100).ID).To(Equal(h2.TaskID()))
		Expect(queue.PopNextDue(100)).To(BeNil())
	})

	ginkgo.It("should treat canceling a popped task as a no-op", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(0)).AnyTimes()

		h := queue.Schedule(10, noop)
		task := queue.PopNextDue(100)
		Expect(task.ID).To(Equal(h.TaskID()))

		queue.Cancel(h)

		Expect(task.canceled).To(BeFalse())
	})

	ginkgo.It("should peek the next live due time", func() {
		timeTeller.EXPECT().Now().Return(VTimeInMs(0)).AnyTimes()

		h1 := queue.Schedule(10, noop)
		queue.Schedule(20, noop)

		due, ok := queue.PeekNextDueTime()
		Expect(ok).To(BeTrue())
		Expect(due).To(Equal(VTimeInMs(10)))

		queue.Cancel(h1)

		due, ok = queue.PeekNextDueTime()
		Expect(ok).To(BeTrue())
		Expect(due).To(Equal(VTimeInMs(20)))
	})

	ginkgo.It("should report no due time when empty", func() {
		_, ok := queue.PeekNextDueTime()
		Expect(ok).To(BeFalse())
	})
})
