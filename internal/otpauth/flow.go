// Package otpauth implements the phone-OTP authentication flow on top of
// the generic flow engine: phone entry, code verification, and first-time
// registration, ending in an authenticated session.
package otpauth

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pixmart/pixmart/internal/classify"
	"github.com/pixmart/pixmart/internal/flow"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/pixmart/pixmart/internal/sessionclock"
	"github.com/pixmart/pixmart/internal/sms"
	"github.com/sirupsen/logrus"
)

type Step string

const (
	StepPhone         Step = "phone"
	StepSendingOTP    Step = "sending_otp"
	StepVerification  Step = "verification"
	StepVerifyingCode Step = "verifying_code"
	StepRegistration  Step = "registration"
	StepRegistering   Step = "registering"
	StepAuthenticated Step = "authenticated"
	StepFailed        Step = "failed"
)

const (
	codeLength     = 6
	maxNicknameLen = 20
)

// Data is the flow-owned payload. The session is created on a successful
// send and discarded whenever the flow resets; it never outlives the flow
// instance.
type Data struct {
	Session models.OTPSession
}

// Callbacks are the flow's outward surface. OnTick reports the seconds
// remaining on the OTP session once per second while a code is awaited.
type Callbacks struct {
	OnAuthenticated func(session models.OTPSession)
	OnError         func(err *classify.Error)
	OnCancel        func()
	OnTick          func(remaining time.Duration)
}

type Flow struct {
	engine   *flow.Engine[Step, string, Data]
	provider sms.Provider
	cb       Callbacks
	logger   *logrus.Logger

	clockMu sync.Mutex
	clock   *sessionclock.Clock
}

func NewFlow(provider sms.Provider, cb Callbacks, logger *logrus.Logger) *Flow {
	f := &Flow{
		provider: provider,
		cb:       cb,
		logger:   logger,
	}

	f.engine = flow.New(flow.Config[Step, string, Data]{
		Initial: StepPhone,
		Success: StepAuthenticated,
		Failed:  StepFailed,
		Logger:  logger,
		Hooks: flow.Hooks[Step, Data]{
			OnSuccess: f.onSuccess,
			OnError:   cb.OnError,
			OnCancel:  cb.OnCancel,
		},
		Steps: map[Step]flow.Step[Step, string, Data]{
			StepPhone:        f.phoneStep(),
			StepVerification: f.verificationStep(),
			StepRegistration: f.registrationStep(),
			StepFailed:       {},
		},
	})

	return f
}

func (f *Flow) phoneStep() flow.Step[Step, string, Data] {
	return flow.Step[Step, string, Data]{
		Pending: StepSendingOTP,
		Retry:   StepPhone,
		Validate: func(_ Data, input string) *classify.Error {
			if _, err := NormalizePhone(input); err != nil {
				return classify.Validation(err.Error())
			}
			return nil
		},
		Run: func(ctx context.Context, _ Data, input string) (flow.Apply[Step, Data], error) {
			phone, err := NormalizePhone(input)
			if err != nil {
				return nil, err
			}

			result, err := f.provider.Send(ctx, phone)
			if err != nil {
				return nil, err
			}

			expiresAt := time.Now().Add(result.TTL)
			return func(d *Data) Step {
				d.Session = models.OTPSession{
					SessionID:   result.SessionID,
					PhoneNumber: phone,
					ExpiresAt:   expiresAt,
				}
				f.startClock(expiresAt)
				return StepVerification
			}, nil
		},
	}
}

func (f *Flow) verificationStep() flow.Step[Step, string, Data] {
	return flow.Step[Step, string, Data]{
		Pending: StepVerifyingCode,
		Retry:   StepVerification,
		Validate: func(d Data, input string) *classify.Error {
			if d.Session.SessionID == "" {
				return classify.SessionInvalid("no OTP session; start over from phone entry")
			}
			if !isCode(input) {
				return classify.Validation(fmt.Sprintf("verification code must be %d digits", codeLength))
			}
			return nil
		},
		Run: func(ctx context.Context, d Data, input string) (flow.Apply[Step, Data], error) {
			// Expiry is advisory client-side; the provider stays
			// authoritative, so a late attempt is still dispatched.
			result, err := f.provider.Verify(ctx, d.Session.SessionID, input)
			if err != nil {
				return nil, err
			}

			return func(d *Data) Step {
				d.Session.UserID = result.UserID
				d.Session.Nickname = result.Nickname
				d.Session.IsNewUser = result.IsNewUser
				f.stopClock()
				if result.IsNewUser {
					return StepRegistration
				}
				return StepAuthenticated
			}, nil
		},
	}
}

func (f *Flow) registrationStep() flow.Step[Step, string, Data] {
	return flow.Step[Step, string, Data]{
		Pending: StepRegistering,
		Retry:   StepRegistration,
		Validate: func(d Data, input string) *classify.Error {
			if d.Session.UserID == "" {
				return classify.SessionInvalid("no verified session; start over from phone entry")
			}
			if input == "" {
				return classify.Validation("nickname must not be empty")
			}
			if utf8.RuneCountInString(input) > maxNicknameLen {
				return classify.Validation(fmt.Sprintf("nickname must be at most %d characters", maxNicknameLen))
			}
			return nil
		},
		Run: func(ctx context.Context, d Data, input string) (flow.Apply[Step, Data], error) {
			err := f.provider.UpdateUser(ctx, d.Session.SessionID, d.Session.UserID, input)
			if err != nil {
				return nil, err
			}

			return func(d *Data) Step {
				d.Session.Nickname = input
				return StepAuthenticated
			}, nil
		},
	}
}

func (f *Flow) onSuccess(d Data) {
	f.logger.WithFields(logrus.Fields{
		"user_id":     d.Session.UserID,
		"is_new_user": d.Session.IsNewUser,
	}).Info("OTP authentication completed")

	if f.cb.OnAuthenticated != nil {
		f.cb.OnAuthenticated(d.Session)
	}
}

// Dispatch advances the flow with the input the current step expects: the
// phone number, the sanitized verification code, or the nickname.
func (f *Flow) Dispatch(ctx context.Context, input string) flow.State[Step, Data] {
	return f.engine.Dispatch(ctx, input)
}

func (f *Flow) State() flow.State[Step, Data] {
	return f.engine.State()
}

// Cancel abandons the outstanding call; its late result is discarded.
func (f *Flow) Cancel() flow.State[Step, Data] {
	return f.engine.Cancel()
}

// Reset discards the session entirely and returns to phone entry. A new
// dispatch always opens a fresh provider session; there is no resume.
func (f *Flow) Reset() flow.State[Step, Data] {
	f.stopClock()
	return f.engine.Reset()
}

// Close tears the flow down; equivalent to Reset for a flow that is being
// discarded.
func (f *Flow) Close() {
	f.Reset()
}

// Wait blocks until no call is outstanding. Test and shutdown helper.
func (f *Flow) Wait() {
	f.engine.Wait()
}

// Remaining reports the time left on the OTP session, zero when no session
// or countdown is active.
func (f *Flow) Remaining() time.Duration {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	if f.clock == nil {
		return 0
	}
	return f.clock.Remaining()
}

func (f *Flow) startClock(expiresAt time.Time) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()

	if f.clock != nil {
		go f.clock.Stop()
	}
	f.clock = sessionclock.New(expiresAt, f.cb.OnTick)
	f.clock.Start()
}

func (f *Flow) stopClock() {
	f.clockMu.Lock()
	clock := f.clock
	f.clock = nil
	f.clockMu.Unlock()

	if clock != nil {
		// Stop blocks until the tick goroutine exits; keep it off the
		// engine lock path.
		go clock.Stop()
	}
}
