package evaluator

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names of the evaluator RPC. Messages are
// google.protobuf.Struct so the simulator side needs no generated stubs.
const (
	ServiceName    = "facade.v1.Evaluator"
	evaluateMethod = "/" + ServiceName + "/Evaluate"
)

// #region client-struct
// GRPCClient calls a remote energy/comfort simulator.
type GRPCClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewGRPCClient connects to the simulator service at addr.
func NewGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, cc: conn}, nil
}

// NewGRPCClientWithConn creates a client over an existing connection.
func NewGRPCClientWithConn(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Close shuts down the connection if the client owns it.
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region evaluate
// Evaluate sends the facade geometry and weather to the simulator.
// A response without annual_energy_use is reported as no result.
func (c *GRPCClient) Evaluate(ctx context.Context, panels []facade.PanelRecord, w weather.Reading) (*Result, error) {
	req, err := EncodeRequest(panels, w)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, evaluateMethod, req, resp); err != nil {
		return nil, fmt.Errorf("evaluate rpc: %w", err)
	}
	return DecodeResult(resp), nil
}

// #endregion evaluate

// #region server
// server adapts an Evaluator to the RPC surface.
type server struct {
	ev Evaluator
}

type evaluatorServer interface {
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterServer exposes ev on s under ServiceName.
func RegisterServer(s grpc.ServiceRegistrar, ev Evaluator) {
	s.RegisterService(&serviceDesc, &server{ev: ev})
}

func (s *server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	panels, w := DecodeRequest(req)
	res, err := s.ev.Evaluate(ctx, panels, w)
	if err != nil {
		return nil, err
	}
	return EncodeResult(res), nil
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(evaluatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(evaluatorServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*evaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "facade/v1/evaluator.proto",
}

// #endregion server

// #region wire
// EncodeRequest builds the request message: a panel list keyed by id,
// rotation and depth, plus the weather the geometry is evaluated under.
func EncodeRequest(panels []facade.PanelRecord, w weather.Reading) (*structpb.Struct, error) {
	list := make([]interface{}, len(panels))
	for i, p := range panels {
		list[i] = map[string]interface{}{
			"panel_id": float64(p.Index),
			"rotation": p.Rotation,
			"depth":    p.Depth,
		}
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"panels": list,
		"weather": map[string]interface{}{
			"temperature":    w.Temperature,
			"humidity":       w.Humidity,
			"wind_speed":     w.WindSpeed,
			"wind_direction": w.WindDirection,
			"cloud_cover":    w.CloudCover,
			"condition":      w.Condition,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return req, nil
}

// DecodeRequest is the inverse of EncodeRequest. Missing fields read as zero.
func DecodeRequest(req *structpb.Struct) ([]facade.PanelRecord, weather.Reading) {
	fields := req.GetFields()

	var panels []facade.PanelRecord
	for _, v := range fields["panels"].GetListValue().GetValues() {
		pf := v.GetStructValue().GetFields()
		panels = append(panels, facade.PanelRecord{
			Index:    int(pf["panel_id"].GetNumberValue()),
			Rotation: pf["rotation"].GetNumberValue(),
			Depth:    pf["depth"].GetNumberValue(),
		})
	}

	wf := fields["weather"].GetStructValue().GetFields()
	w := weather.Reading{
		Temperature:   wf["temperature"].GetNumberValue(),
		Humidity:      wf["humidity"].GetNumberValue(),
		WindSpeed:     wf["wind_speed"].GetNumberValue(),
		WindDirection: wf["wind_direction"].GetNumberValue(),
		CloudCover:    wf["cloud_cover"].GetNumberValue(),
		Condition:     wf["condition"].GetStringValue(),
	}
	return panels, w
}

// EncodeResult builds the response message. A nil result encodes as an
// empty struct.
func EncodeResult(res *Result) *structpb.Struct {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if res == nil {
		return out
	}
	out.Fields["annual_energy_use"] = structpb.NewNumberValue(res.AnnualEnergyUse)
	if res.IndoorTemperature != nil {
		out.Fields["indoor_temperature"] = structpb.NewNumberValue(*res.IndoorTemperature)
	}
	if res.IndoorHumidity != nil {
		out.Fields["indoor_humidity"] = structpb.NewNumberValue(*res.IndoorHumidity)
	}
	return out
}

// DecodeResult reads a response message; no annual_energy_use means no result.
func DecodeResult(resp *structpb.Struct) *Result {
	fields := resp.GetFields()
	energy, ok := fields["annual_energy_use"]
	if !ok {
		return nil
	}
	res := &Result{AnnualEnergyUse: energy.GetNumberValue()}
	if v, ok := fields["indoor_temperature"]; ok {
		t := v.GetNumberValue()
		res.IndoorTemperature = &t
	}
	if v, ok := fields["indoor_humidity"]; ok {
		h := v.GetNumberValue()
		res.IndoorHumidity = &h
	}
	return res
}

// #endregion wire
