package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/piratecash/llmqd/blockindex"
	"github.com/piratecash/llmqd/llmq"
	"github.com/urfave/cli"
)

var (
	typeFlag = cli.StringFlag{
		Name:  "type",
		Value: "llmq_test_dip0024",
		Usage: "The name of the quorum type.",
	}
	heightFlag = cli.IntFlag{
		Name:  "height",
		Usage: "The height of the quorum base block.",
	}
	jsonFlag = cli.BoolFlag{
		Name:  "json",
		Usage: "Print the result as JSON instead of a table.",
	}
)

// newTable returns a table writer printing to stdout.
func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)

	return t
}

// quorumParams resolves the --type flag on the session's network.
func quorumParams(ctx *cli.Context, s *session) (llmq.Params, error) {
	t, err := llmq.TypeFromName(ctx.String(typeFlag.Name))
	if err != nil {
		return llmq.Params{}, err
	}

	return s.network.NetParams().Params(t)
}

// blockAt extends the session's chain up to the --height flag.
func blockAt(ctx *cli.Context, s *session) (*blockindex.Node, error) {
	height := ctx.Int(heightFlag.Name)
	if height < 0 {
		return nil, fmt.Errorf("invalid height %d", height)
	}

	return s.network.ExtendTo(int32(height))
}

var paramsCommand = cli.Command{
	Name:   "params",
	Usage:  "List the quorum types of the network.",
	Flags:  []cli.Flag{jsonFlag},
	Action: listParams,
}

type paramsResp struct {
	Name      string `json:"name"`
	Type      uint8  `json:"type"`
	Size      int    `json:"size"`
	MinSize   int    `json:"min_size"`
	Threshold int    `json:"threshold"`
	Interval  int    `json:"dkg_interval"`
	Rotation  bool   `json:"rotation"`
	Active    int    `json:"signing_active_quorums"`
	KeepOld   int    `json:"keep_old_connections"`
}

func listParams(ctx *cli.Context) error {
	netParams, err := llmq.ParamsForNetwork(ctx.GlobalString("network"))
	if err != nil {
		return err
	}

	resp := make([]paramsResp, 0, len(netParams.LLMQs))
	for _, p := range netParams.LLMQs {
		resp = append(resp, paramsResp{
			Name:      p.Name,
			Type:      uint8(p.Type),
			Size:      p.Size,
			MinSize:   p.MinSize,
			Threshold: p.Threshold,
			Interval:  p.DKGInterval,
			Rotation:  p.UseRotation,
			Active:    p.SigningActiveQuorumCount,
			KeepOld:   p.KeepOldConnections,
		})
	}

	if ctx.Bool(jsonFlag.Name) {
		printJSON(resp)
		return nil
	}

	t := newTable(table.Row{
		"Name", "Type", "Size", "Min", "Threshold", "Interval",
		"Rotation", "Active", "Keep",
	})
	for _, r := range resp {
		t.AppendRow(table.Row{
			r.Name, r.Type, r.Size, r.MinSize, r.Threshold,
			r.Interval, r.Rotation, r.Active, r.KeepOld,
		})
	}
	t.Render()

	return nil
}

var quorumsCommand = cli.Command{
	Name:  "quorums",
	Usage: "List the newest mined quorums of a type.",
	Flags: []cli.Flag{
		typeFlag,
		cli.IntFlag{
			Name:  "height",
			Value: 100,
			Usage: "The height of the chain tip.",
		},
		cli.IntFlag{
			Name: "count",
			Usage: "The number of quorums to list. Defaults to " +
				"the number of quorums connections are kept to.",
		},
		jsonFlag,
	},
	Action: listQuorums,
}

type quorumResp struct {
	Height int32  `json:"height"`
	Hash   string `json:"hash"`
	Active bool   `json:"active"`
}

func listQuorums(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	p, err := quorumParams(ctx, s)
	if err != nil {
		return err
	}
	tip, err := blockAt(ctx, s)
	if err != nil {
		return err
	}

	count := ctx.Int("count")
	if count <= 0 {
		count = p.KeepOldConnections
	}

	var resp []quorumResp
	for _, hash := range s.network.ScanQuorums(uint8(p.Type), tip, count) {
		active, err := s.engine.IsQuorumActive(p.Type, tip, hash)
		if err != nil {
			return err
		}

		resp = append(resp, quorumResp{
			Height: s.network.Chain().LookupNode(hash).Height(),
			Hash:   hash.String(),
			Active: active,
		})
	}

	if ctx.Bool(jsonFlag.Name) {
		printJSON(resp)
		return nil
	}

	t := newTable(table.Row{"Height", "Quorum hash", "Active"})
	for _, r := range resp {
		t.AppendRow(table.Row{r.Height, r.Hash, r.Active})
	}
	t.Render()

	return nil
}

var membersCommand = cli.Command{
	Name:   "members",
	Usage:  "Compute the members of a quorum.",
	Flags:  []cli.Flag{typeFlag, heightFlag, jsonFlag},
	Action: listMembers,
}

type memberResp struct {
	Index     int    `json:"index"`
	ProTxHash string `json:"pro_tx_hash"`
	Addr      string `json:"addr"`
}

func listMembers(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	p, err := quorumParams(ctx, s)
	if err != nil {
		return err
	}
	base, err := blockAt(ctx, s)
	if err != nil {
		return err
	}

	members, err := s.engine.GetAllQuorumMembers(p.Type, base, false)
	if err != nil {
		return err
	}

	resp := make([]memberResp, 0, len(members))
	for i, mn := range members {
		resp = append(resp, memberResp{
			Index:     i,
			ProTxHash: mn.ProTxHash.String(),
			Addr:      mn.Addr,
		})
	}

	if ctx.Bool(jsonFlag.Name) {
		printJSON(resp)
		return nil
	}

	t := newTable(table.Row{"#", "ProTxHash", "Address"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	for _, r := range resp {
		t.AppendRow(table.Row{r.Index, r.ProTxHash, r.Addr})
	}
	t.Render()

	return nil
}

var connectionsCommand = cli.Command{
	Name:  "connections",
	Usage: "Show the connections of one quorum member.",
	Flags: []cli.Flag{
		typeFlag,
		heightFlag,
		cli.IntFlag{
			Name:  "member",
			Usage: "The index of the member within the quorum.",
		},
		jsonFlag,
	},
	Action: showConnections,
}

type connectionResp struct {
	Index     int    `json:"index"`
	ProTxHash string `json:"pro_tx_hash"`
	Connected bool   `json:"connected"`
	Outbound  bool   `json:"outbound"`
	Relay     bool   `json:"relay"`
}

func showConnections(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	p, err := quorumParams(ctx, s)
	if err != nil {
		return err
	}
	base, err := blockAt(ctx, s)
	if err != nil {
		return err
	}

	members, err := s.engine.GetAllQuorumMembers(p.Type, base, false)
	if err != nil {
		return err
	}
	idx := ctx.Int("member")
	if idx < 0 || idx >= len(members) {
		return fmt.Errorf("member index %d out of range, the quorum "+
			"has %d members", idx, len(members))
	}
	me := members[idx].ProTxHash

	connections, err := s.engine.GetQuorumConnections(p, base, me, false)
	if err != nil {
		return err
	}
	outbound, err := s.engine.GetQuorumConnections(p, base, me, true)
	if err != nil {
		return err
	}
	relays, err := s.engine.GetQuorumRelayMembers(p, base, me, true)
	if err != nil {
		return err
	}

	var resp []connectionResp
	for i, mn := range members {
		if mn.ProTxHash == me {
			continue
		}

		resp = append(resp, connectionResp{
			Index:     i,
			ProTxHash: mn.ProTxHash.String(),
			Connected: connections.Contains(mn.ProTxHash),
			Outbound:  outbound.Contains(mn.ProTxHash),
			Relay:     relays.Contains(mn.ProTxHash),
		})
	}

	if ctx.Bool(jsonFlag.Name) {
		printJSON(resp)
		return nil
	}

	fmt.Printf("Member %d (%v) of %v quorum at height %d\n", idx, me,
		p.Type, base.Height())

	t := newTable(table.Row{
		"#", "ProTxHash", "Connected", "Outbound", "Relay",
	})
	for _, r := range resp {
		t.AppendRow(table.Row{
			r.Index, r.ProTxHash, r.Connected, r.Outbound, r.Relay,
		})
	}
	t.Render()

	return nil
}

var snapshotCommand = cli.Command{
	Name:  "snapshot",
	Usage: "Show the rotation snapshot of a cycle.",
	Description: "Computes the members of the rotating quorum at the " +
		"given cycle start and prints the snapshot recorded for it.",
	Flags:  []cli.Flag{typeFlag, heightFlag, jsonFlag},
	Action: showSnapshot,
}

type snapshotResp struct {
	CycleHash     string  `json:"cycle_hash"`
	Mode          string  `json:"skip_mode"`
	ActiveMembers []bool  `json:"active_members"`
	ActiveCount   int     `json:"active_count"`
	SkipList      []int32 `json:"skip_list"`
}

func showSnapshot(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	p, err := quorumParams(ctx, s)
	if err != nil {
		return err
	}
	if !p.UseRotation {
		return fmt.Errorf("%v does not rotate", p.Type)
	}

	base, err := blockAt(ctx, s)
	if err != nil {
		return err
	}
	cycleBase := base.Ancestor(
		base.Height() - base.Height()%int32(p.DKGInterval),
	)

	_, err = s.engine.GetAllQuorumMembers(p.Type, cycleBase, false)
	if err != nil {
		return err
	}

	snapOpt, err := s.snapshots.FetchSnapshot(
		uint8(p.Type), cycleBase.Hash(),
	)
	if err != nil {
		return err
	}
	if snapOpt.IsNone() {
		return errors.New("no snapshot recorded, rotation is not " +
			"active at this cycle")
	}
	snap := snapOpt.UnwrapOr(nil)

	resp := snapshotResp{
		CycleHash:     cycleBase.Hash().String(),
		Mode:          snap.SkipMode.String(),
		ActiveMembers: snap.ActiveMembers,
		ActiveCount:   snap.ActiveCount(),
		SkipList:      snap.SkipList,
	}

	if ctx.Bool(jsonFlag.Name) {
		printJSON(resp)
		return nil
	}

	t := newTable(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"cycle height", cycleBase.Height()},
		{"cycle hash", resp.CycleHash},
		{"skip mode", resp.Mode},
		{"active members", fmt.Sprintf("%d of %d", resp.ActiveCount,
			len(resp.ActiveMembers))},
		{"skip list", fmt.Sprint(resp.SkipList)},
	})
	t.Render()

	return nil
}
