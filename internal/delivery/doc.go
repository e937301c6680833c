// Package delivery fans an edition out to its eligible recipients.
//
// Service.Send moves a scheduled edition to sending, then for every recipient
// creates a tracking record, renders a personalised document and hands it to
// the injected mailer.Sender. Recipients are processed by a bounded worker pool
// throttled by a token bucket; one recipient failing never stops the others.
// The outcome is aggregated into a Result and the edition ends in sent, even
// when some recipients failed. Errors that abort the batch after the sending
// write mark the edition failed. Once the sending write is done the batch is
// detached from the caller's context and always runs to the end.
//
// Status writes only touch the lifecycle columns and carry the status they
// expect to replace, so opens counted during a send survive it. There is no
// lock around a send; a process whose write finds another status gets
// newsletter.ErrInvalidTransition and sends nothing.
package delivery
