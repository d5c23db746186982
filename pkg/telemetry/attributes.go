package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Сущность
	AttrEntitySpace    = "entity.space"
	AttrEntityName     = "entity.name"
	AttrEntityVersion  = "entity.version"
	AttrEntityID       = "entity.id"
	AttrDriftType      = "entity.drift_type"

	// Оценка дрейфа
	AttrAlgorithm    = "algorithm.name"
	AttrSampleCount  = "algorithm.sample_count"
	AttrDriftScore   = "algorithm.drift_score"
	AttrRulesFired   = "algorithm.rules_fired"

	// Валидация
	AttrValidationLevel  = "validation.level"
	AttrValidationErrors = "validation.errors"
	AttrValidationPassed = "validation.passed"

	// Очередь и транспорт
	AttrQueueDepth    = "queue.depth"
	AttrTransportName = "transport.name"
)

// EntityAttributes возвращает атрибуты идентичности сущности мониторинга.
func EntityAttributes(space, name, version, driftType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrEntitySpace, space),
		attribute.String(AttrEntityName, name),
		attribute.String(AttrEntityVersion, version),
		attribute.String(AttrDriftType, driftType),
	}
}

// AlgorithmAttributes возвращает атрибуты выполнения алгоритма оценки дрейфа.
func AlgorithmAttributes(name string, sampleCount int, driftScore float64, rulesFired int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAlgorithm, name),
		attribute.Int(AttrSampleCount, sampleCount),
		attribute.Float64(AttrDriftScore, driftScore),
		attribute.Int(AttrRulesFired, rulesFired),
	}
}

// ValidationAttributes возвращает атрибуты валидации
func ValidationAttributes(level string, errorsCount int, passed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrValidationLevel, level),
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Bool(AttrValidationPassed, passed),
	}
}
