package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/academy"
	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/config"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/metrics"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/rpc"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/ui"
	"github.com/trustless-academy/academy/internal/wallet"
)

// session is one connected run of a command: the chosen endpoint, the read
// cache following new heads and the academy bound to the active wallet.
type session struct {
	Network    config.Network
	RPC        string
	Deployment academy.Deployment
	Wallet     *wallet.Wallet
	Academy    *academy.Academy

	prompt *ui.Prompter
	stop   context.CancelFunc
}

// Close stops the head follower and the metrics server.
func (s *session) Close() {
	s.stop()
	s.Academy.Reads().Wait()
}

func walletManager() *wallet.Manager {
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeyStore(wallet.DefaultKeystore(cfg.Dir())),
	)
}

// activeWallet is the wallet named by --wallet, the config default or the
// manager default, in that order.
func activeWallet(m *wallet.Manager, name string) (*wallet.Wallet, error) {
	if name == "" {
		name = cfg.DefaultWallet
	}
	if name != "" {
		return m.Get(name)
	}
	if w := m.Default(); w != nil {
		return w, nil
	}
	return nil, txn.ErrNoAccount
}

// knownContracts maps deployed addresses to their ABI for signature prompts.
func knownContracts(dep academy.Deployment) map[common.Address]*contract.Kind {
	known := map[common.Address]*contract.Kind{}
	for addr, kind := range map[common.Address]*contract.Kind{
		dep.Kitchen:     contract.KitchenTokenKind,
		dep.Ingredients: contract.IngredientsKind,
		dep.Dishes:      contract.DishNFTKind,
		dep.Seed:        contract.SeedTokenKind,
		dep.StakedSeed:  contract.StakedSeedTokenKind,
		dep.Garden:      contract.GardenDepositKind,
		dep.Greenhouse:  contract.GreenhouseKind,
	} {
		if addr != (common.Address{}) {
			known[addr] = kind
		}
	}
	return known
}

// signerFor returns a prompting signer for a signing wallet and a
// watch-only signer otherwise.
func signerFor(m *wallet.Manager, w *wallet.Wallet, dep academy.Deployment, p *ui.Prompter) (txn.Signer, error) {
	if w.Type == wallet.TypeWatchOnly {
		return wallet.WatchOnlySigner(w.Addr()), nil
	}
	inner, err := m.Signer(w)
	if err != nil {
		return nil, err
	}
	return &wallet.PromptSigner{Inner: inner, Confirm: p.ConfirmSignature, Known: knownContracts(dep)}, nil
}

// openSession resolves the network, picks an endpoint and wires the read
// cache, submitter, watcher and academy for walletName.
func openSession(ctx context.Context, walletName string) (*session, error) {
	nw, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	dep, err := cfg.Deployment()
	if err != nil {
		return nil, err
	}

	selCtx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
	url, err := rpc.Select(selCtx, rpc.NewPicker(rpc.Algorithm(cfg.RPCAlgorithm), nil), nw.RPCURLs, nw.ChainID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", nw.Name, err)
	}
	logger.Debug("using endpoint", zap.String("network", nw.Name), zap.String("rpc", url))

	m := walletManager()
	w, err := activeWallet(m, walletName)
	if err != nil {
		return nil, err
	}
	prompt := &ui.Prompter{In: os.Stdin, Out: os.Stderr, Yes: assumeYes}
	signer, err := signerFor(m, w, dep, prompt)
	if err != nil {
		return nil, err
	}

	runCtx, stop := context.WithCancel(ctx)
	reg := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := reg.Serve(runCtx, cfg.MetricsAddr, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	client := chain.NewEVMClient(url)
	reads := readcache.New(contract.NewCaller(client),
		readcache.WithLogger(logger),
		readcache.WithMetrics(reg),
		readcache.WithTimeout(config.ReadTimeout))
	heads := chain.NewHeadSource(client, nw.WSURL, cfg.PollInterval(), cfg.PollJitter(), logger)
	go reads.Run(runCtx, heads.Heads(runCtx))

	sub := txn.NewSubmitter(client, signer,
		txn.WithReadCache(reads),
		txn.WithLogger(logger),
		txn.WithMetrics(reg),
		txn.WithChainID(nw.ChainID))
	watcher := txn.NewWatcher(client,
		txn.WatchLogger(logger),
		txn.WatchMetrics(reg),
		txn.PollEvery(cfg.PollInterval(), cfg.PollJitter()),
		txn.MaxAttempts(cfg.ConfirmAttempts),
		txn.Confirmations(uint64(cfg.Confirmations)),
		txn.DropTimeout(cfg.DropTimeout()))

	ac := academy.New(dep, sub, watcher, reads,
		academy.WithLogger(logger),
		academy.WithMetrics(reg),
		academy.WithCooldown(cfg.FaucetCooldown()))
	ac.Watch(w.Addr())

	return &session{
		Network:    nw,
		RPC:        url,
		Deployment: dep,
		Wallet:     w,
		Academy:    ac,
		prompt:     prompt,
		stop:       stop,
	}, nil
}

// require fails early when the wallet cannot sign or the network has no
// address for one of the named contracts.
func (s *session) require(names ...string) error {
	if s.Wallet.Type == wallet.TypeWatchOnly {
		return fmt.Errorf("%s: %w", s.Wallet.Name, wallet.ErrWatchOnly)
	}
	missing := map[string]bool{}
	for _, n := range s.Deployment.Missing() {
		missing[n] = true
	}
	for _, n := range names {
		if missing[n] {
			return fmt.Errorf("no %s address for this network; set it with: academy config set contracts.%s.%s <address>",
				n, cfg.Network, n)
		}
	}
	return nil
}
