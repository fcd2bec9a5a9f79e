package cmn

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. The English text is the key.
const (
	MsgMinStake            = "Minimum stake amount is %s"
	MsgInvalidAmount       = "Please enter a valid amount"
	MsgInsufficientBalance = "Insufficient balance"
	MsgSelfReferral        = "Cannot set yourself as referrer"
	MsgReferrerRequired    = "Please enter referrer address"
	MsgInvalidReferrer     = "Please enter a valid referrer address"
	MsgReferrerConflict    = "Referrer %s is already bound, %s is ignored"
	MsgReferrerInactive    = "Referrer %s has no active stake"
	MsgStakeSuccess        = "Stake successful"
	MsgStakeCancelled      = "User cancelled staking"
	MsgStakeFailed         = "Stake failed"
	MsgWithdrawSuccess     = "Withdrawal successful"
	MsgWithdrawCancelled   = "User cancelled withdrawal"
	MsgWithdrawFailed      = "Withdrawal failed"
	MsgStakeNotActive      = "Stake #%d is not active"
	MsgClaimSuccess        = "Rewards claimed successfully"
	MsgClaimCancelled      = "User cancelled claim"
	MsgClaimFailed         = "Failed to claim rewards"
	MsgApproveSuccess      = "Approval successful"
	MsgApproveCancelled    = "User cancelled approval"
	MsgApproveFailed       = "Approval failed"
	MsgNotDeployed         = "Contract is not deployed at the configured address"
	MsgUnavailable         = "Network is unavailable, please try again later"
	MsgSubmissionUnknown   = "Transaction status is unknown, check your wallet before retrying"
	MsgBusy                = "Another %s is in progress"
	MsgApproving           = "Approving..."
	MsgStaking             = "Staking..."
	MsgWithdrawing         = "Withdrawing..."
	MsgClaiming            = "Claiming..."
	MsgProcessing          = "Processing..."
)

var translations = map[language.Tag]map[string]string{
	language.Chinese: {
		MsgMinStake:            "最小质押数量为%s",
		MsgInvalidAmount:       "请输入有效的数字",
		MsgInsufficientBalance: "余额不足",
		MsgSelfReferral:        "不能将自己设置为推荐人",
		MsgReferrerRequired:    "请输入推荐人地址",
		MsgInvalidReferrer:     "请输入有效的推荐人地址",
		MsgReferrerConflict:    "已绑定推荐人%s，忽略%s",
		MsgReferrerInactive:    "推荐人%s没有有效质押",
		MsgStakeSuccess:        "质押成功",
		MsgStakeCancelled:      "用户取消质押",
		MsgStakeFailed:         "质押失败",
		MsgWithdrawSuccess:     "赎回成功",
		MsgWithdrawCancelled:   "用户取消赎回",
		MsgWithdrawFailed:      "赎回失败",
		MsgStakeNotActive:      "质押#%d已结束",
		MsgClaimSuccess:        "领取收益成功",
		MsgClaimCancelled:      "用户取消领取",
		MsgClaimFailed:         "领取收益失败",
		MsgApproveSuccess:      "授权成功",
		MsgApproveCancelled:    "用户取消授权",
		MsgApproveFailed:       "授权失败",
		MsgNotDeployed:         "配置的地址上没有部署合约",
		MsgUnavailable:         "网络不可用，请稍后再试",
		MsgSubmissionUnknown:   "交易状态未知，请先检查钱包再重试",
		MsgBusy:                "另一个%s正在进行中",
		MsgApproving:           "授权中...",
		MsgStaking:             "质押中...",
		MsgWithdrawing:         "赎回中...",
		MsgClaiming:            "领取中...",
		MsgProcessing:          "处理中...",
	},
	language.Japanese: {
		MsgMinStake:            "最小ステーク量は%sです",
		MsgInvalidAmount:       "有効な数値を入力してください",
		MsgInsufficientBalance: "残高不足",
		MsgSelfReferral:        "自分自身を紹介者として設定できません",
		MsgReferrerRequired:    "紹介者アドレスを入力してください",
		MsgInvalidReferrer:     "有効な紹介者アドレスを入力してください",
		MsgReferrerConflict:    "紹介者%sが既に設定されています。%sは無視されます",
		MsgReferrerInactive:    "紹介者%sには有効なステークがありません",
		MsgStakeSuccess:        "ステーク成功",
		MsgStakeCancelled:      "ユーザーがステーキングをキャンセルしました",
		MsgStakeFailed:         "ステーク失敗",
		MsgWithdrawSuccess:     "引き出し成功",
		MsgWithdrawCancelled:   "ユーザーが引き出しをキャンセルしました",
		MsgWithdrawFailed:      "引き出し失敗",
		MsgStakeNotActive:      "ステーク#%dは終了しています",
		MsgClaimSuccess:        "報酬の請求に成功しました",
		MsgClaimCancelled:      "ユーザーが請求をキャンセルしました",
		MsgClaimFailed:         "報酬の請求に失敗しました",
		MsgApproveSuccess:      "承認成功",
		MsgApproveCancelled:    "ユーザーが承認をキャンセルしました",
		MsgApproveFailed:       "承認失敗",
		MsgNotDeployed:         "設定されたアドレスにコントラクトがありません",
		MsgUnavailable:         "ネットワークが利用できません。後でもう一度お試しください",
		MsgSubmissionUnknown:   "取引の状態が不明です。再試行する前にウォレットを確認してください",
		MsgBusy:                "別の%sが進行中です",
		MsgApproving:           "承認中...",
		MsgStaking:             "ステーク中...",
		MsgWithdrawing:         "引き出し中...",
		MsgClaiming:            "請求中...",
		MsgProcessing:          "処理中...",
	},
	language.Korean: {
		MsgMinStake:            "최소 스테이크 금액은 %s입니다",
		MsgInvalidAmount:       "유효한 숫자를 입력해주세요",
		MsgInsufficientBalance: "잔액 부족",
		MsgSelfReferral:        "자신을 추천인으로 설정할 수 없습니다",
		MsgReferrerRequired:    "추천인 주소를 입력해주세요",
		MsgInvalidReferrer:     "유효한 추천인 주소를 입력해주세요",
		MsgReferrerConflict:    "추천인 %s이(가) 이미 설정되어 있어 %s은(는) 무시됩니다",
		MsgReferrerInactive:    "추천인 %s에게 활성 스테이크가 없습니다",
		MsgStakeSuccess:        "스테이크 성공",
		MsgStakeCancelled:      "사용자가 스테이킹을 취소했습니다",
		MsgStakeFailed:         "스테이크 실패",
		MsgWithdrawSuccess:     "출금 성공",
		MsgWithdrawCancelled:   "사용자가 출금을 취소했습니다",
		MsgWithdrawFailed:      "출금 실패",
		MsgStakeNotActive:      "스테이크 #%d은(는) 종료되었습니다",
		MsgClaimSuccess:        "보상 청구 성공",
		MsgClaimCancelled:      "사용자가 청구를 취소했습니다",
		MsgClaimFailed:         "보상 청구 실패",
		MsgApproveSuccess:      "승인 성공",
		MsgApproveCancelled:    "사용자가 승인을 취소했습니다",
		MsgApproveFailed:       "승인 실패",
		MsgNotDeployed:         "설정된 주소에 컨트랙트가 없습니다",
		MsgUnavailable:         "네트워크를 사용할 수 없습니다. 잠시 후 다시 시도해주세요",
		MsgSubmissionUnknown:   "거래 상태를 알 수 없습니다. 다시 시도하기 전에 지갑을 확인해주세요",
		MsgBusy:                "다른 %s이(가) 진행 중입니다",
		MsgApproving:           "승인 중...",
		MsgStaking:             "스테이크 중...",
		MsgWithdrawing:         "출금 중...",
		MsgClaiming:            "청구 중...",
		MsgProcessing:          "처리 중...",
	},
}

func init() {
	for tag, m := range translations {
		for key, msg := range m {
			if err := message.SetString(tag, key, msg); err != nil {
				log.Error().Err(err).Msgf("messages: %s %q", tag, key)
			}
		}
	}
}

// T formats a message key in the configured language. Unknown languages fall back to English.
func T(key string, args ...any) string {
	return TL(Config.Language, key, args...)
}

func TL(lang string, key string, args ...any) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprintf(key, args...)
}
