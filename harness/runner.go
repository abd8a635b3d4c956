// Copyright 2024 The evmodin-test Authors
// This file is part of the evmodin-test library.
//
// The evmodin-test library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The evmodin-test library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the evmodin-test library. If not, see <http://www.gnu.org/licenses/>.

// Package harness deploys contracts into a ledger, configures them and runs
// their test functions through an execution backend.
//
// A Runner moves through its phases strictly in order:
//
//	Deploy -> Configure -> Discover -> Dispatch
//
// Every message is applied to the runner's ledger in the order it is issued
// and observes the effects of all earlier successful messages.
package harness

import (
	"fmt"
	"regexp"
	"time"

	"github.com/WilfredTA/evmodin-test/accounts/abicodec"
	"github.com/WilfredTA/evmodin-test/core/backend"
	"github.com/WilfredTA/evmodin-test/core/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	// DefaultGas is the gas budget of every configuration and test message.
	DefaultGas = 15_000_000

	// DefaultNonce and DefaultBalance are given to deployed contracts that do
	// not specify their own.
	DefaultNonce   = 1
	DefaultBalance = 10_000_000
)

// Phase is a stage of a test run.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseDeploy
	PhaseConfigure
	PhaseDiscover
	PhaseDispatch
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseDeploy:
		return "deploy"
	case PhaseConfigure:
		return "configure"
	case PhaseDiscover:
		return "discover"
	case PhaseDispatch:
		return "dispatch"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Contract is a contract to deploy. If Code is empty, InitCode is executed and
// the runtime code it returns is installed at Address.
type Contract struct {
	Name      string
	Address   common.Address
	Code      []byte
	InitCode  []byte
	Functions abicodec.Functions
	Balance   *uint256.Int // nil means DefaultBalance
	Nonce     *uint64      // nil means DefaultNonce
}

// Setup is a configuration message sent to a deployed contract.
type Setup struct {
	Contract  string
	Signature string
	Args      []interface{}
}

// Option configures a Runner.
type Option func(*Runner)

// WithSender sets the sender of every message. The default is the zero
// address.
func WithSender(addr common.Address) Option {
	return func(r *Runner) { r.sender = addr }
}

// WithGas sets the gas budget of every message.
func WithGas(gas uint64) Option {
	return func(r *Runner) { r.gas = gas }
}

// WithTarget selects the contract whose test functions are run. The default
// is the last deployed contract.
func WithTarget(name string) Option {
	return func(r *Runner) { r.target = name }
}

// WithFilter only runs test functions whose name matches re.
func WithFilter(re *regexp.Regexp) Option {
	return func(r *Runner) { r.filter = re }
}

// WithKeepGoing makes Dispatch run every test instead of stopping at the
// first failing one.
func WithKeepGoing() Option {
	return func(r *Runner) { r.failFast = false }
}

// WithResultHook calls fn with every test result as soon as it is known.
func WithResultHook(fn func(TestResult)) Option {
	return func(r *Runner) { r.onResult = fn }
}

// Runner executes one test run. It owns its ledger for the duration of the
// run and is not safe for concurrent use.
type Runner struct {
	backend backend.Backend
	ledger  *ledger.Ledger

	sender   common.Address
	gas      uint64
	target   string
	filter   *regexp.Regexp
	failFast bool
	onResult func(TestResult)

	phase     Phase
	contracts map[string]*Contract
	order     []string
}

// NewRunner creates a runner that executes through b against an empty ledger.
func NewRunner(b backend.Backend, opts ...Option) *Runner {
	r := &Runner{
		backend:   b,
		ledger:    ledger.New(),
		gas:       DefaultGas,
		failFast:  true,
		contracts: make(map[string]*Contract),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ledger returns the ledger the runner executes against.
func (r *Runner) Ledger() *ledger.Ledger {
	return r.ledger
}

// Phase returns the last phase the runner entered.
func (r *Runner) Phase() Phase {
	return r.phase
}

// Contract returns the deployed contract with the given name.
func (r *Runner) Contract(name string) (*Contract, bool) {
	c, ok := r.contracts[name]
	return c, ok
}

// enter moves the runner to phase next, which must follow one of from.
func (r *Runner) enter(next Phase, from ...Phase) error {
	for _, p := range from {
		if r.phase == p {
			r.phase = next
			return nil
		}
	}
	return fmt.Errorf("%w: %v after %v", ErrPhaseOrder, next, r.phase)
}

// Deploy installs contracts in the ledger. It may be called repeatedly until
// the runner is configured. A call either deploys all of its contracts or,
// on error, leaves the ledger and the set of known contracts as they were.
func (r *Runner) Deploy(contracts ...Contract) error {
	if err := r.enter(PhaseDeploy, PhaseNew, PhaseDeploy); err != nil {
		return err
	}
	for _, c := range contracts {
		if len(c.Code) == 0 && len(c.InitCode) == 0 {
			return fmt.Errorf("%w: %s", ErrNoCode, c.Name)
		}
	}
	snapshot := r.ledger.Copy()
	deployed, err := r.deploy(contracts)
	if err != nil {
		r.ledger.Restore(snapshot)
		return err
	}
	for _, c := range deployed {
		if _, ok := r.contracts[c.Name]; !ok {
			r.order = append(r.order, c.Name)
		}
		r.contracts[c.Name] = c
		log.Info("Deployed contract", "name", c.Name, "address", c.Address, "size", len(c.Code))
	}
	return nil
}

func (r *Runner) deploy(contracts []Contract) ([]*Contract, error) {
	deployed := make([]*Contract, 0, len(contracts))
	for i := range contracts {
		c := contracts[i]
		if c.Balance == nil {
			c.Balance = uint256.NewInt(DefaultBalance)
		}
		if c.Nonce == nil {
			nonce := uint64(DefaultNonce)
			c.Nonce = &nonce
		}
		if len(c.Code) == 0 {
			code, err := r.create(&c)
			if err != nil {
				return nil, err
			}
			c.Code = code
		} else {
			r.ledger.Deploy(c.Address, c.Code, c.Balance, *c.Nonce)
		}
		deployed = append(deployed, &c)
	}
	return deployed, nil
}

// create runs the init code of c and moves the resulting account, including
// any storage written by the constructor, to c.Address.
func (r *Runner) create(c *Contract) ([]byte, error) {
	out, err := r.backend.Execute(r.ledger, &backend.Message{
		Kind:   backend.Create,
		Sender: r.sender,
		Input:  c.InitCode,
		Gas:    r.gas,
	})
	if err != nil {
		return nil, err
	}
	if out.Status != backend.Success {
		return nil, &AssertionError{Phase: PhaseDeploy, Name: c.Name, Expected: backend.Success, Actual: out.Status, Reason: Reason(out)}
	}
	acct := r.ledger.Get(out.Created).Copy()
	r.ledger.Delete(out.Created)
	acct.Balance = new(uint256.Int).Set(c.Balance)
	acct.Nonce = *c.Nonce
	r.ledger.Put(c.Address, acct)
	log.Debug("Relocated created contract", "name", c.Name, "from", out.Created, "to", c.Address)
	return acct.Code, nil
}

// Configure sends the setup messages in order, followed by setUp() on the
// target contract if it has one. Every message must succeed.
func (r *Runner) Configure(setups ...Setup) error {
	if err := r.enter(PhaseConfigure, PhaseDeploy); err != nil {
		return err
	}
	for _, s := range setups {
		c, ok := r.contracts[s.Contract]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContract, s.Contract)
		}
		input, err := abicodec.EncodeCall(s.Signature, s.Args...)
		if err != nil {
			return fmt.Errorf("setup %s: %w", s.Signature, err)
		}
		if err := r.mustSucceed(c, s.Signature, input); err != nil {
			return err
		}
	}
	target, err := r.targetContract()
	if err != nil {
		return err
	}
	if fn, ok := target.Functions.Lookup(setUpName); ok && len(fn.Inputs) == 0 {
		return r.mustSucceed(target, fn.Canonical(), fn.Selector.Bytes())
	}
	return nil
}

func (r *Runner) mustSucceed(c *Contract, name string, input []byte) error {
	out, err := r.call(c.Address, input)
	if err != nil {
		return err
	}
	if out.Status != backend.Success {
		return &AssertionError{Phase: PhaseConfigure, Name: c.Name + "." + name, Expected: backend.Success, Actual: out.Status, Reason: Reason(out)}
	}
	log.Debug("Configured contract", "name", c.Name, "call", name, "gas", out.GasUsed)
	return nil
}

func (r *Runner) call(to common.Address, input []byte) (*backend.Outcome, error) {
	return r.backend.Execute(r.ledger, &backend.Message{
		Kind:        backend.Call,
		Sender:      r.sender,
		Destination: to,
		Input:       input,
		Gas:         r.gas,
	})
}

func (r *Runner) targetContract() (*Contract, error) {
	name := r.target
	if name == "" {
		if len(r.order) == 0 {
			return nil, ErrNoTarget
		}
		name = r.order[len(r.order)-1]
	}
	c, ok := r.contracts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	}
	return c, nil
}

// Discover lists the test functions of the target contract in ABI order.
// Test functions taking arguments cannot be dispatched and are skipped.
func (r *Runner) Discover() ([]TestCase, error) {
	if err := r.enter(PhaseDiscover, PhaseConfigure); err != nil {
		return nil, err
	}
	target, err := r.targetContract()
	if err != nil {
		return nil, err
	}
	var cases []TestCase
	for _, fn := range target.Functions.WithPrefix(testPrefix) {
		if r.filter != nil && !r.filter.MatchString(fn.Name) {
			continue
		}
		if len(fn.Inputs) > 0 {
			log.Warn("Skipping test function with arguments", "contract", target.Name, "function", fn.Canonical())
			continue
		}
		cases = append(cases, NewTestCase(target.Name, fn))
	}
	log.Debug("Discovered tests", "contract", target.Name, "count", len(cases))
	return cases, nil
}

// Dispatch runs every test case and classifies its outcome. In fail-fast mode
// it stops at the first failing test and returns the results so far together
// with an *AssertionError.
func (r *Runner) Dispatch(cases []TestCase) (Results, error) {
	if err := r.enter(PhaseDispatch, PhaseDiscover); err != nil {
		return nil, err
	}
	results := make(Results, 0, len(cases))
	for _, tc := range cases {
		c, ok := r.contracts[tc.Contract]
		if !ok {
			return results, fmt.Errorf("%w: %s", ErrUnknownContract, tc.Contract)
		}
		start := time.Now()
		out, err := r.call(c.Address, tc.Function.Selector.Bytes())
		if err != nil {
			return results, err
		}
		res := newTestResult(tc, out)
		results = append(results, res)
		log.Debug("Executed test", "test", tc, "status", out.Status, "pass", res.Pass, "gas", out.GasUsed, "elapsed", time.Since(start))

		if r.onResult != nil {
			r.onResult(res)
		}
		if !res.Pass && r.failFast {
			return results, &AssertionError{Phase: PhaseDispatch, Name: tc.String(), Expected: res.Expected, Actual: res.Actual, Reason: res.Reason}
		}
	}
	return results, nil
}

// Run performs a complete test run.
func (r *Runner) Run(contracts []Contract, setups []Setup) (Results, error) {
	if err := r.Deploy(contracts...); err != nil {
		return nil, err
	}
	if err := r.Configure(setups...); err != nil {
		return nil, err
	}
	cases, err := r.Discover()
	if err != nil {
		return nil, err
	}
	return r.Dispatch(cases)
}
