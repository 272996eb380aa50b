package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	MessageIDKey   = "message_id"
	ServiceNameKey = "service_name"
	LineSeqKey     = "line_seq"
	RuleKey        = "rule"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func WithLineSeq(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, LineSeqKey, seq)
}

func WithRule(ctx context.Context, rule string) context.Context {
	return context.WithValue(ctx, RuleKey, rule)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLineSeq(ctx context.Context) (uint64, bool) {
	seq, ok := ctx.Value(LineSeqKey).(uint64)
	return seq, ok
}

func GetRule(ctx context.Context) string {
	if rule, ok := ctx.Value(RuleKey).(string); ok {
		return rule
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDKey, traceID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, MessageIDKey, messageID)
	}

	if seq, ok := GetLineSeq(ctx); ok {
		fields = append(fields, LineSeqKey, seq)
	}

	if rule := GetRule(ctx); rule != "" {
		fields = append(fields, RuleKey, rule)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameKey, serviceName)
	}

	return fields
}
