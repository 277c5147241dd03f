package stream

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Aggregator", func() {
	var agg *Aggregator

	BeforeEach(func() {
		agg = NewAggregator()
	})

	It("joins fragments in arrival order without a separator", func() {
		Expect(agg.Apply(Message{Answer: "A"})).To(Succeed())
		Expect(agg.Apply(AgentMessage{Text: "B"})).To(Succeed())
		Expect(agg.Apply(Message{Answer: "A"})).To(Succeed())

		Expect(agg.Fragments()).To(Equal([]string{"A", "B", "A"}))
		Expect(agg.Finalize().Answer).To(Equal("ABA"))
	})

	It("keeps the last non-empty identifiers", func() {
		Expect(agg.Apply(Message{Answer: "x", ConversationID: "c1", MessageID: "m1", TaskID: "t1"})).To(Succeed())
		Expect(agg.Apply(Message{ConversationID: "c2"})).To(Succeed())
		Expect(agg.Apply(Message{Answer: "y", TaskID: "t2"})).To(Succeed())

		res := agg.Finalize()
		Expect(res.ConversationID).To(Equal("c2"))
		Expect(res.MessageID).To(Equal("m1"))
		Expect(res.TaskID).To(Equal("t2"))
	})

	It("skips empty answers", func() {
		Expect(agg.Apply(Message{})).To(Succeed())
		Expect(agg.Apply(AgentMessage{})).To(Succeed())
		Expect(agg.Fragments()).To(BeEmpty())
	})

	It("ignores done and unknown events", func() {
		Expect(agg.Apply(DoneEvent{})).To(Succeed())
		Expect(agg.Apply(Unknown{Raw: "event: ping"})).To(Succeed())
		Expect(agg.Fragments()).To(BeEmpty())
	})

	It("fails immediately on an error event", func() {
		err := agg.Apply(ErrorEvent{Payload: json.RawMessage(`{"reason":"x"}`)})

		var perr *ProtocolError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Field("reason")).To(Equal("x"))
	})

	Context("finalize", func() {
		It("falls back to the raw text when nothing was decoded", func() {
			agg.Record("data: {bad json\n\n")
			Expect(agg.Apply(Unknown{Cause: ErrMalformedFrame})).To(Succeed())

			res := agg.Finalize()
			Expect(res.Answer).To(Equal("data: {bad json\n\n"))
			Expect(res.RawFallback).To(BeTrue())
		})

		It("returns an empty answer when nothing was received", func() {
			res := agg.Finalize()
			Expect(res.Answer).To(BeEmpty())
			Expect(res.RawFallback).To(BeFalse())
		})

		It("prefers decoded fragments over raw text", func() {
			agg.Record("raw")
			Expect(agg.Apply(Message{Answer: "decoded"})).To(Succeed())
			Expect(agg.Finalize().Answer).To(Equal("decoded"))
		})

		It("is idempotent", func() {
			agg.Record("r")
			Expect(agg.Apply(Message{Answer: "A", ConversationID: "c"})).To(Succeed())
			Expect(agg.Finalize()).To(Equal(agg.Finalize()))
		})
	})
})

var _ = Describe("ProtocolError", func() {
	It("renders string and non-string fields", func() {
		perr := &ProtocolError{Payload: json.RawMessage(`{"reason":"quota","code":429}`)}
		Expect(perr.Field("reason")).To(Equal("quota"))
		Expect(perr.Field("code")).To(Equal("429"))
		Expect(perr.Field("missing")).To(BeEmpty())
		Expect(perr.Error()).To(ContainSubstring("quota"))
	})

	It("copes with a non-object payload", func() {
		perr := &ProtocolError{Payload: json.RawMessage(`"boom"`)}
		Expect(perr.Field("reason")).To(BeEmpty())
		Expect((&ProtocolError{}).Error()).To(Equal("stream error event"))
	})
})
